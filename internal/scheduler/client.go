package scheduler

import (
	"net"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"
)

// Client is one connected client socket, owned by exactly one worker for
// its whole lifetime (spec.md §3: "a client is pinned to the worker it
// was accepted on"). Only the owning worker goroutine ever touches a
// Client's fields.
type Client struct {
	ID   uint64
	Addr string
	conn net.Conn

	// readBuf holds bytes read from the socket that have not yet been
	// fully consumed into a Request (spec.md §4.1's parse cursor lives
	// one level up, inside this buffer).
	readBuf []byte

	// parsingID is the arena id of the Request currently being parsed,
	// or proto.NoID between commands.
	parsingID int

	// outbox holds reply bytes queued for this client that have not yet
	// been written to the socket.
	outbox []byte

	// pendingReplies counts Requests issued by this client that have
	// been parsed but have not yet had a reply written back (whether
	// still queued for dispatch or already sent upstream),
	// used for the per-client backpressure cap (spec.md §9 open
	// question: maxPendingPerConn).
	pendingReplies int

	closed bool

	// Private, when non-nil, is this client's dedicated cluster view:
	// a private clone of the shared slot map plus a registry of
	// single-connection pools, installed the first time the client is
	// switched out of multiplexed mode (spec.md §4.4).
	Private *PrivateConnection
}

// PrivateConnection is a client's dedicated view of the cluster, built
// by cloning every node it might ever route to (spec.md §4.4 step 1:
// "clone every node in the shared slot map, even ones this client has
// not talked to yet, since a later command may need one").
type PrivateConnection struct {
	SlotMap  *cluster.SlotMap
	Registry *upstream.Registry
}

func newClient(id uint64, addr string, conn net.Conn) *Client {
	return &Client{
		ID:        id,
		Addr:      addr,
		conn:      conn,
		parsingID: proto.NoID,
	}
}

// IsPrivate reports whether this client has been switched to a private,
// non-multiplexed upstream connection set.
func (c *Client) IsPrivate() bool {
	return c.Private != nil
}
