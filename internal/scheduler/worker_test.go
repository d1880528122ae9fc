package scheduler

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"
)

// fakeShardServer accepts exactly one connection and writes reply for
// every request it reads off that connection, good enough to exercise a
// worker's full parse -> route -> dispatch -> reply path end to end.
func fakeShardServer(t *testing.T, reply []byte) (addr string, stop func()) {
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
		var pending []byte
		for {
			n, err := conn.Read(buf)
			pending = append(pending, buf[:n]...)
			for len(pending) > 0 {
				req := &proto.Request{Raw: pending}
				tail := proto.Parse(req)
				if req.State != proto.StateOK {
					break
				}
				conn.Write(reply)
				pending = tail
			}
			if err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func oneNodeRegistry(t *testing.T, addr string, numWorkers int) (*cluster.SlotMap, *upstream.Registry) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	node := &cluster.Node{Name: "s0", IP: host, Port: port}
	for i := 0; i < cluster.NumSlots; i++ {
		node.Slots = append(node.Slots, i)
	}
	sm, err := cluster.Build([]*cluster.Node{node})
	require.NoError(t, err)
	reg := upstream.NewRegistry(sm, numWorkers)
	return sm, reg
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func readFull(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return buf
}

func TestWorkerEndToEndPing(t *testing.T) {
	shardAddr, stopShard := fakeShardServer(t, []byte("+PONG\r\n"))
	defer stopShard()

	sm, reg := oneNodeRegistry(t, shardAddr, 1)
	cfg := config.Default()
	cfg.Seed = shardAddr

	w := NewWorker(0, cfg, sm, reg, testLogger())
	w.Start()
	defer w.Stop()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	w.AcceptClient(1, serverConn)

	_, err := clientConn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	reply := readFull(t, clientConn, len("+PONG\r\n"))
	require.Equal(t, "+PONG\r\n", string(reply))
}

func TestWorkerEndToEndUnsupportedCommand(t *testing.T) {
	shardAddr, stopShard := fakeShardServer(t, []byte("+PONG\r\n"))
	defer stopShard()

	sm, reg := oneNodeRegistry(t, shardAddr, 1)
	cfg := config.Default()
	cfg.Seed = shardAddr

	w := NewWorker(0, cfg, sm, reg, testLogger())
	w.Start()
	defer w.Stop()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	w.AcceptClient(1, serverConn)

	_, err := clientConn.Write([]byte("*1\r\n$5\r\nMULTI\r\n"))
	require.NoError(t, err)

	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "Unsupported command: 'MULTI'")
}

func TestWorkerEndToEndPipelinedCommands(t *testing.T) {
	shardAddr, stopShard := fakeShardServer(t, []byte("+PONG\r\n"))
	defer stopShard()

	sm, reg := oneNodeRegistry(t, shardAddr, 1)
	cfg := config.Default()
	cfg.Seed = shardAddr

	w := NewWorker(0, cfg, sm, reg, testLogger())
	w.Start()
	defer w.Stop()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	w.AcceptClient(1, serverConn)

	_, err := clientConn.Write([]byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	first := readFull(t, clientConn, len("+PONG\r\n"))
	require.Equal(t, "+PONG\r\n", string(first))
	second := readFull(t, clientConn, len("+PONG\r\n"))
	require.Equal(t, "+PONG\r\n", string(second))
}
