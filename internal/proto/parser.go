package proto

import "bytes"

// Parse attempts to parse one whole command from the front of req.Raw.
// It sets req.State to StateOK, StateIncomplete or StateError. When the
// command completes with bytes left over in req.Raw — a second command
// pipelined into the same read — req.Raw is truncated to exactly the
// consumed bytes and the leftover bytes are returned as tail; the caller
// (internal/scheduler) is responsible for allocating a successor Request
// from the thread's arena, setting its Raw to tail, linking
// predecessor.Next <-> successor.Prev, and recursively calling Parse on
// it (spec.md §4.1 "Pipeline splitting").
func Parse(req *Request) (tail []byte) {
	if req.State == StateOK || req.State == StateError {
		return nil
	}
	if req.framing == framingUnknown {
		if len(req.Raw) == 0 {
			req.State = StateIncomplete
			return nil
		}
		if req.Raw[0] == '*' {
			req.framing = framingMultiBulk
		} else {
			req.framing = framingInline
		}
	}
	if req.framing == framingMultiBulk {
		return parseMultiBulk(req)
	}
	return parseInline(req)
}

// readLine scans buf[pos:] for a '\n', returning the line with any
// trailing '\r' stripped and the offset just past the '\n'.
func readLine(buf []byte, pos int) (line []byte, next int, ok bool) {
	idx := bytes.IndexByte(buf[pos:], '\n')
	if idx < 0 {
		return nil, 0, false
	}
	idx += pos
	end := idx
	if end > pos && buf[end-1] == '\r' {
		end--
	}
	return buf[pos:end], idx + 1, true
}

func parseMultiBulk(req *Request) []byte {
	buf := req.Raw
	line, pos, ok := readLine(buf, 0)
	if !ok {
		req.State = StateIncomplete
		return nil
	}
	if len(line) < 2 || line[0] != '*' {
		req.State = StateError
		return nil
	}
	n, err := atoi(line[1:])
	if err != nil {
		req.State = StateError
		return nil
	}
	if n < 0 {
		n = 0 // negative bulk/array counts normalize to 0 (spec.md §4.1)
	}

	for i := int64(0); i < n; i++ {
		hdr, afterHdr, ok := readLine(buf, pos)
		if !ok {
			req.State = StateIncomplete
			return nil
		}
		if len(hdr) < 1 || hdr[0] != '$' {
			req.State = StateError
			return nil
		}
		l, err := atoi(hdr[1:])
		if err != nil {
			req.State = StateError
			return nil
		}
		if l < 0 {
			l = 0
		}
		bodyEnd := afterHdr + int(l)
		if len(buf) < bodyEnd+2 {
			req.State = StateIncomplete
			return nil
		}
		if buf[bodyEnd] != '\r' || buf[bodyEnd+1] != '\n' {
			req.State = StateError
			return nil
		}
		req.appendArg(afterHdr, int(l))
		pos = bodyEnd + 2
	}

	req.State = StateOK
	return req.finishAt(pos)
}

func parseInline(req *Request) []byte {
	buf := req.Raw
	line, next, ok := readLine(buf, 0)
	if !ok {
		req.State = StateIncomplete
		return nil
	}
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		for i < len(line) && line[i] != ' ' {
			i++
		}
		req.appendArg(start, i-start)
	}
	req.State = StateOK
	return req.finishAt(next)
}

// finishAt truncates req.Raw to the consumed [0:pos) range and returns
// anything left over as the tail for a pipeline split.
func (r *Request) finishAt(pos int) []byte {
	buf := r.Raw
	if pos >= len(buf) {
		return nil
	}
	tail := append([]byte(nil), buf[pos:]...)
	r.Raw = buf[:pos]
	return tail
}
