package scheduler

import "github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"

// connKey identifies one (worker, shard) socket. clientID is 0 for a
// shared, multiplexed connection; any other value names the private
// client that owns a dedicated connection to that shard (spec.md §4.4).
// internal/listener must hand out client ids starting at 1 so a real
// client id can never collide with the shared-connection sentinel.
type connKey struct {
	clientID uint64
	node     string
}

// workerConn pairs an upstream connection with the FIFO of request ids
// awaiting a reply on it. Reply matching is strictly head-of-queue,
// realizing spec.md §4.3's "replies are routed strictly FIFO per
// upstream connection" directly as a per-connection data structure
// rather than filtering a single combined list by node, as
// _examples/original_source/src/proxy.c does — an equivalent, simpler
// rendition of the same invariant.
type workerConn struct {
	key           connKey
	uc            *upstream.Conn
	pending       *Queue
	readerStarted bool
}
