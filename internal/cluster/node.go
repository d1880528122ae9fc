// Package cluster models the cluster's sharded topology: shard nodes and
// the slot map that routes keys to them, grounded on clusterNode /
// redisCluster in _examples/original_source/src/cluster.h.
package cluster

import (
	"net"
	"strconv"
	"sync"
)

// SlotRange is a migrating/importing slot range recorded for diagnostics
// only; this proxy never acts on it (MOVED/ASK handling is a Non-goal).
type SlotRange struct {
	Slot int
	Peer string // destination (migrating) or source (importing) node name
}

// Node is one cluster shard: a stable identity plus the slots it owns.
// A Node is either a shared instance owned by the proxy-wide SlotMap, or
// a private clone owned by exactly one client that has entered
// private-connection mode (spec.md §4.4); CloneOf links back to the
// shared original it was duplicated from.
type Node struct {
	IP   string
	Port int
	Name string

	IsReplica bool
	MasterID  string

	Slots      []int
	Migrating  []SlotRange
	Importing  []SlotRange

	CloneOf *Node

	// connMu serializes concurrent connect attempts from different
	// worker goroutines onto this node, mirroring cluster.h's
	// connection_mutex / clusterNodeConnectAtomic.
	connMu sync.Mutex
}

// Addr returns the node's dial address.
func (n *Node) Addr() string {
	return net.JoinHostPort(n.IP, strconv.Itoa(n.Port))
}

// ConnectMu exposes the per-node connect mutex to the upstream pool.
func (n *Node) ConnectMu() *sync.Mutex { return &n.connMu }

// Clone duplicates a shared node into a private clone for one client,
// mirroring duplicateClusterNode in cluster.c: same identity and slot
// set, and its own unlocked connect mutex. The clone's connection lives
// in the upstream pool built for it, not on the Node.
func (n *Node) Clone() *Node {
	clone := &Node{
		IP:        n.IP,
		Port:      n.Port,
		Name:      n.Name,
		IsReplica: n.IsReplica,
		MasterID:  n.MasterID,
		Slots:     n.Slots,
		CloneOf:   n,
	}
	return clone
}
