package upstream

import (
	"fmt"
	"time"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
)

// Pool holds one Conn slot per worker for a single shard, plus one extra
// slot (index numWorkers), matching spec.md §3/§4.5: "a vector of
// worker_count + 1 connection slots". cluster.Bootstrap uses its own
// client, so nothing in this proxy dials the extra slot. Slot access is by worker id; slot 0 is reused for
// private-mode clones, since a private clone owns exactly one
// connection and is never shared across workers.
type Pool struct {
	node  *cluster.Node
	conns []*Conn
}

// NewPool allocates (but does not dial) the per-worker connection slots
// for node.
func NewPool(node *cluster.Node, numWorkers int) *Pool {
	conns := make([]*Conn, numWorkers+1)
	for i := range conns {
		conns[i] = &Conn{Node: node}
	}
	return &Pool{node: node, conns: conns}
}

// NewPrivatePool allocates the single-connection pool backing a
// private-mode client's cloned shard (spec.md §4.4 step 1: "each clone
// carries one upstream connection, not worker_count").
func NewPrivatePool(node *cluster.Node) *Pool {
	return &Pool{node: node, conns: []*Conn{{Node: node}}}
}

// Conn returns the connection slot for worker id w (or the sole slot, 0,
// for a private pool).
func (p *Pool) Conn(w int) *Conn {
	if len(p.conns) == 1 {
		return p.conns[0]
	}
	return p.conns[w]
}

// Ensure dials the slot for worker w if it is not already alive,
// serializing concurrent connect attempts onto this node via its
// per-node mutex (spec.md §4.5's connection_mutex, carried on
// cluster.Node). keepalive/auth come from the proxy's static config.
func (p *Pool) Ensure(w int, keepalive time.Duration, auth string) error {
	conn := p.Conn(w)
	if conn.IsAlive() {
		return nil
	}
	p.node.ConnectMu().Lock()
	defer p.node.ConnectMu().Unlock()
	if conn.IsAlive() {
		return nil
	}
	if err := conn.Dial(p.node.Addr(), keepalive, auth); err != nil {
		return fmt.Errorf("upstream: could not connect to node %s (%s): %w", p.node.Name, p.node.Addr(), err)
	}
	return nil
}

// Registry indexes a Pool per shard name, built once at bootstrap and
// read-only afterwards (spec.md §5: shared shard identities are
// immutable after bootstrap).
type Registry struct {
	pools map[string]*Pool
}

// NewRegistry builds one Pool per node in slotMap's shard set.
func NewRegistry(slotMap *cluster.SlotMap, numWorkers int) *Registry {
	reg := &Registry{pools: make(map[string]*Pool)}
	for _, n := range slotMap.Nodes() {
		reg.pools[n.Name] = NewPool(n, numWorkers)
	}
	return reg
}

// Pool returns the shared pool for a node name, or nil if unknown.
func (r *Registry) Pool(nodeName string) *Pool {
	return r.pools[nodeName]
}

// NewPrivateRegistry builds one single-connection Pool per node in
// slotMap, for a client that has been switched out of multiplexed mode
// (spec.md §4.4 step 1). Unlike NewRegistry, every Pool here has exactly
// one connection slot regardless of worker count, since a private
// client's clone is never shared across workers.
func NewPrivateRegistry(slotMap *cluster.SlotMap) *Registry {
	reg := &Registry{pools: make(map[string]*Pool)}
	for _, n := range slotMap.Nodes() {
		reg.pools[n.Name] = NewPrivatePool(n)
	}
	return reg
}
