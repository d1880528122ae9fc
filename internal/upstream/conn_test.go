package upstream

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
)

// fakeShard accepts one connection and writes a canned reply after every
// successful read from it, good enough to exercise Dial/Write/Read/AUTH
// without a real cluster node.
func fakeShard(t *testing.T, reply []byte, requireAuth string) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		if requireAuth != "" {
			n, _ := conn.Read(buf)
			_ = n
			conn.Write([]byte("+OK\r\n"))
		}
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				conn.Write(reply)
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestConnDialWriteRead(t *testing.T) {
	addr, stop := fakeShard(t, []byte("+PONG\r\n"), "")
	defer stop()

	c := &Conn{Node: &cluster.Node{Name: "s0"}}
	require.NoError(t, c.Dial(addr, 15*time.Second, ""))
	defer c.Close()

	_, err := c.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	require.NoError(t, c.Read())
	reply, ok, err := c.Reader.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+PONG\r\n", string(reply))
}

func TestConnDialWithAuth(t *testing.T) {
	addr, stop := fakeShard(t, []byte("+PONG\r\n"), "secret")
	defer stop()

	c := &Conn{Node: &cluster.Node{Name: "s0"}}
	require.NoError(t, c.Dial(addr, 15*time.Second, "secret"))
	defer c.Close()
	assert.True(t, c.IsAlive())
}

func TestPoolEnsureReusesAliveConn(t *testing.T) {
	addr, stop := fakeShard(t, []byte("+PONG\r\n"), "")
	defer stop()

	node := &cluster.Node{Name: "s0", IP: ipOf(addr), Port: portOf(addr)}
	pool := NewPool(node, 4)
	require.NoError(t, pool.Ensure(1, 15*time.Second, ""))
	first := pool.Conn(1)
	require.True(t, first.IsAlive())

	require.NoError(t, pool.Ensure(1, 15*time.Second, ""))
	assert.Same(t, first, pool.Conn(1))
}

func ipOf(addr string) string {
	host, _, _ := net.SplitHostPort(addr)
	return host
}

func portOf(addr string) int {
	_, port, _ := net.SplitHostPort(addr)
	var p int
	for _, c := range port {
		p = p*10 + int(c-'0')
	}
	return p
}
