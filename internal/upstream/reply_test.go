package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanReplySimpleTypes(t *testing.T) {
	cases := []string{"+OK\r\n", "-ERR boom\r\n", ":42\r\n", "$5\r\nhello\r\n", "$-1\r\n", "*0\r\n"}
	for _, c := range cases {
		n, ok, err := scanReply([]byte(c))
		require.NoError(t, err)
		require.True(t, ok, c)
		assert.Equal(t, len(c), n, c)
	}
}

func TestScanReplyNestedArray(t *testing.T) {
	reply := "*2\r\n$3\r\nfoo\r\n*2\r\n:1\r\n:2\r\n"
	n, ok, err := scanReply([]byte(reply))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(reply), n)
}

func TestScanReplyIncomplete(t *testing.T) {
	_, ok, err := scanReply([]byte("$5\r\nhel"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplyReaderNextAndCompact(t *testing.T) {
	r := &ReplyReader{}
	r.Append([]byte("+OK\r\n$3\r\nbar\r\n"))

	reply, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+OK\r\n", string(reply))

	r.Compact()
	assert.Equal(t, "$3\r\nbar\r\n", string(r.Pending()))

	reply, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "$3\r\nbar\r\n", string(reply))
}

func TestReplyReaderNextFalseWhenIncomplete(t *testing.T) {
	r := &ReplyReader{}
	r.Append([]byte("$5\r\nhel"))
	_, ok, err := r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}
