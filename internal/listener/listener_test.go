package listener

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/scheduler"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"
)

func testWorkers(t *testing.T, n int) []*scheduler.Worker {
	t.Helper()
	node := &cluster.Node{Name: "s0", IP: "127.0.0.1", Port: 7000}
	for i := 0; i < cluster.NumSlots; i++ {
		node.Slots = append(node.Slots, i)
	}
	sm, err := cluster.Build([]*cluster.Node{node})
	require.NoError(t, err)
	reg := upstream.NewRegistry(sm, n)

	log := logrus.NewEntry(logrus.New())
	workers := make([]*scheduler.Worker, n)
	for i := 0; i < n; i++ {
		workers[i] = scheduler.NewWorker(i, config.Default(), sm, reg, log)
		workers[i].Start()
	}
	return workers
}

func TestListenerAcceptsAndDispatches(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0 // ephemeral port

	workers := testWorkers(t, 2)
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()

	l, err := New(cfg, workers, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer l.Close()

	go l.Serve()

	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// No shard listens on the test node's address, so the dispatched
	// worker answers PING with a connect error, proving the connection
	// reached a worker's parse/route/dispatch pipeline.
	_, err = conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "Could not connect")
}
