package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMultiBulkComplete(t *testing.T) {
	req := &Request{Raw: []byte("*3\r\n$3\r\nSET\r\n$2\r\nk0\r\n$1\r\nv\r\n")}
	tail := Parse(req)
	require.Nil(t, tail)
	require.Equal(t, StateOK, req.State)
	require.Equal(t, 3, req.Argc())
	assert.Equal(t, "SET", string(req.Arg(0)))
	assert.Equal(t, "k0", string(req.Arg(1)))
	assert.Equal(t, "v", string(req.Arg(2)))
}

func TestParseMultiBulkIncompleteThenComplete(t *testing.T) {
	full := "*2\r\n$3\r\nGET\r\n$2\r\nk0\r\n"
	req := &Request{}
	for i := 1; i <= len(full); i++ {
		req.Raw = []byte(full[:i])
		req.State = StateUnknown
		req.framing = framingUnknown
		req.argc = 0
		req.argOffsets = nil
		req.argLengths = nil
		Parse(req)
		if i < len(full) {
			require.Equal(t, StateIncomplete, req.State, "prefix length %d", i)
		}
	}
	require.Equal(t, StateOK, req.State)
	require.Equal(t, 2, req.Argc())
	assert.Equal(t, "GET", string(req.Arg(0)))
	assert.Equal(t, "k0", string(req.Arg(1)))
}

func TestParsePipelineSplit(t *testing.T) {
	cmd1 := "*3\r\n$3\r\nGET\r\n$2\r\nk0\r\n$0\r\n\r\n"
	cmd2 := "*2\r\n$3\r\nGET\r\n$2\r\nk1\r\n"
	first := &Request{ID: 1, Raw: []byte(cmd1 + cmd2)}
	tail := Parse(first)
	require.Equal(t, StateOK, first.State)
	require.Equal(t, []byte(cmd1), first.Raw)
	require.Equal(t, []byte(cmd2), tail)

	second := &Request{ID: 2, Raw: tail}
	second.Prev = first.ID
	first.Next = second.ID
	moreTail := Parse(second)
	require.Nil(t, moreTail)
	require.Equal(t, StateOK, second.State)
	require.Equal(t, 2, second.Argc())
	assert.Equal(t, "k1", string(second.Arg(1)))
	assert.Equal(t, first.ID, second.Prev)
	assert.Equal(t, second.ID, first.Next)
}

func TestParseInline(t *testing.T) {
	req := &Request{Raw: []byte("PING\r\n")}
	Parse(req)
	require.Equal(t, StateOK, req.State)
	require.Equal(t, 1, req.Argc())
	assert.Equal(t, "PING", string(req.Arg(0)))
}

func TestParseInlineMultipleSpaces(t *testing.T) {
	req := &Request{Raw: []byte("EXISTS   somekey\n")}
	Parse(req)
	require.Equal(t, StateOK, req.State)
	require.Equal(t, 2, req.Argc())
	assert.Equal(t, "EXISTS", string(req.Arg(0)))
	assert.Equal(t, "somekey", string(req.Arg(1)))
}

func TestParseErrorMissingDollar(t *testing.T) {
	req := &Request{Raw: []byte("*1\r\nXSET\r\n")}
	Parse(req)
	assert.Equal(t, StateError, req.State)
}

func TestParseNegativeBulkLenNormalizesToZero(t *testing.T) {
	req := &Request{Raw: []byte("*1\r\n$-1\r\n\r\n")}
	Parse(req)
	require.Equal(t, StateOK, req.State)
	require.Equal(t, 1, req.Argc())
	assert.Equal(t, "", string(req.Arg(0)))
}
