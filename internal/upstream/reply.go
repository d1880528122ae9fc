// Package upstream manages the proxy's TCP connections to cluster
// shards: per-(worker,shard) sockets, lazy connect with AUTH, and the
// reply-framing scanner the scheduler uses to know how many bytes of a
// shard's raw reply belong to the request at the head of its pending
// queue. Grounded on writeToCluster/readClusterReply in
// _examples/original_source/src/proxy.c and generalized from
// Luit-rcp/parse/parse.go's single-RESP-value Split function to handle
// arbitrarily nested array replies (MGET, HGETALL, ...), which the
// teacher's Split never needed to since it only ever read one value at
// a time off a non-pipelined connection.
package upstream

import (
	"bytes"
	"errors"
	"fmt"
)

// scanReply reports the byte length of exactly one RESP reply starting
// at buf[0], recursing into arrays so nested replies are measured whole.
// ok is false when buf does not yet contain a complete reply (the
// scheduler should keep reading more bytes before retrying).
func scanReply(buf []byte) (n int, ok bool, err error) {
	return scanReplyAt(buf, 0)
}

func scanReplyAt(buf []byte, pos int) (int, bool, error) {
	if pos >= len(buf) {
		return 0, false, nil
	}
	switch buf[pos] {
	case '+', '-', ':':
		idx := bytes.IndexByte(buf[pos:], '\n')
		if idx < 0 {
			return 0, false, nil
		}
		return pos + idx + 1, true, nil
	case '$':
		line, after, ok := readLine(buf, pos)
		if !ok {
			return 0, false, nil
		}
		l, err := atoi(line[1:])
		if err != nil {
			return 0, false, fmt.Errorf("upstream: invalid bulk length in reply: %w", err)
		}
		if l < 0 {
			return after, true, nil // null bulk reply: "$-1\r\n", no body
		}
		end := after + int(l) + 2
		if len(buf) < end {
			return 0, false, nil
		}
		return end, true, nil
	case '*':
		line, after, ok := readLine(buf, pos)
		if !ok {
			return 0, false, nil
		}
		n, err := atoi(line[1:])
		if err != nil {
			return 0, false, fmt.Errorf("upstream: invalid array length in reply: %w", err)
		}
		cursor := after
		for i := int64(0); i < n; i++ {
			next, ok, err := scanReplyAt(buf, cursor)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				return 0, false, nil
			}
			cursor = next
		}
		return cursor, true, nil
	default:
		// Tolerate a bare inline-style line, defensively: real shard
		// replies are always typed, but this avoids wedging the
		// connection on an unexpected byte.
		idx := bytes.IndexByte(buf[pos:], '\n')
		if idx < 0 {
			return 0, false, nil
		}
		return pos + idx + 1, true, nil
	}
}

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

func atoi(src []byte) (int64, error) {
	if len(src) == 0 {
		return 0, errors.New("upstream: empty integer")
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
			return 0, errors.New("upstream: invalid integer")
		}
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ReplyReader holds the unbounded byte buffer a single upstream
// connection's replies are read into, plus the consumer cursor into it
// (spec.md §3: "unbounded byte buffer with a consumer cursor").
type ReplyReader struct {
	buf      []byte
	consumed int
}

// Append grows the buffer with newly read bytes.
func (r *ReplyReader) Append(data []byte) {
	r.buf = append(r.buf, data...)
}

// Pending returns the unconsumed bytes.
func (r *ReplyReader) Pending() []byte {
	return r.buf[r.consumed:]
}

// Next returns the next full reply's bytes and advances the consumer
// cursor past it, without copying the rest of the buffer. ok is false
// if a complete reply is not yet available.
func (r *ReplyReader) Next() (reply []byte, ok bool, err error) {
	n, ok, err := scanReply(r.Pending())
	if err != nil || !ok {
		return nil, false, err
	}
	reply = r.buf[r.consumed : r.consumed+n]
	r.consumed += n
	return reply, true, nil
}

// Compact drops already-consumed bytes and resets the cursor, called
// after every consumed reply per spec.md §4.3.
func (r *ReplyReader) Compact() {
	if r.consumed == 0 {
		return
	}
	remaining := len(r.buf) - r.consumed
	copy(r.buf, r.buf[r.consumed:])
	r.buf = r.buf[:remaining]
	r.consumed = 0
}
