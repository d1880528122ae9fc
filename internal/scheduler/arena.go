// Package scheduler implements the proxy's per-worker request-scheduling
// engine: the arena of in-flight proto.Request values, the shared
// to-send/pending FIFO queues, client bookkeeping, and the dispatch and
// reply-routing rules that decide when a parsed request is written to a
// shard and when a shard's reply is written back to a client. Grounded
// on the aeEventLoop-driven single-threaded reactor in
// _examples/original_source/src/proxy.c (handleNextRequestToCluster,
// handleNextPendingRequest, processRequest, disableMultiplexingForClient)
// and translated into Go's reactor idiom: one goroutine per worker owns
// all scheduling state, fed by per-connection reader/writer goroutines
// over channels, the pattern chuimengdaoxizhou-go-redis's tcp/server.go
// uses for its per-connection handler loop.
package scheduler

import "github.com/yangbodong22011/redis-cluster-proxy/internal/proto"

// Arena is a per-worker slab of proto.Request values indexed by integer
// id. Pipeline links (Request.Prev/Next) are ids into this slab, never
// pointers, so freeing or relocating a Request
// never requires chasing down other Requests that point at it (spec.md
// §9 design notes: "links are ids, not owning pointers, precisely to
// avoid the cyclic-pointer fix-up bugs that kind of linked structure
// invites"). An Arena is only ever touched by its owning worker
// goroutine.
type Arena struct {
	slots []*proto.Request
	free  []int
}

// NewArena returns an empty arena. Slots are allocated lazily as New is
// called, so idle workers carry no request backing storage.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a Request for clientID, reusing a freed slot if one is
// available.
func (a *Arena) New(clientID uint64) *proto.Request {
	var id int
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		id = len(a.slots)
		a.slots = append(a.slots, &proto.Request{})
	}
	req := a.slots[id]
	req.Reset(id, clientID)
	return req
}

// Get resolves an arena id to its Request, or nil for proto.NoID.
func (a *Arena) Get(id int) *proto.Request {
	if id == proto.NoID {
		return nil
	}
	return a.slots[id]
}

// Free returns a Request's slot to the free list. The caller must have
// already unlinked it from every queue and from its pipeline
// neighbours' Prev/Next fields.
func (a *Arena) Free(id int) {
	if id == proto.NoID {
		return
	}
	a.free = append(a.free, id)
}
