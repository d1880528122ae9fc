package proto

import "errors"

// atoi is adapted from Luit-rcp/parse/util.go: a minimal ASCII integer
// parser for the lengths embedded in the wire protocol ("*N", "$L"),
// kept instead of strconv.Atoi so a malformed length (anything but an
// optional leading '-' followed by digits) is reported the same way the
// teacher's parser reported it, rather than strconv's richer error set.
func atoi(src []byte) (int64, error) {
	if len(src) == 0 {
		return 0, errors.New("proto: empty integer")
	}
	neg := false
	var v int64
	for i, c := range src {
		switch {
		case i == 0 && c == '-':
			neg = true
		case c >= '0' && c <= '9':
			v = v*10 + int64(c-'0')
		default:
			return 0, errors.New("proto: invalid integer")
		}
	}
	if neg {
		v = -v
	}
	return v, nil
}
