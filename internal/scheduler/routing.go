package scheduler

import (
	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/cmdtable"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
)

// routeRequest fills in req's routing fields (spec.md §4.2): which
// shard owns it, whether it touches more than one slot, or whether it
// is unknown/unsupported. It never touches the network; dispatch
// decides what to do with an unroutable request.
func routeRequest(req *proto.Request, slotMap *cluster.SlotMap) {
	if req.Argc() == 0 {
		req.UnknownCmd = true
		return
	}
	req.CmdName = req.Arg(0)
	cmd, ok := cmdtable.Lookup(req.Arg(0))
	if !ok {
		req.UnknownCmd = true
		return
	}
	if cmd.Unsupported {
		req.Unsupported = true
		return
	}
	if !cmd.HasKeys() {
		// A key-less command (PING, INFO, ...) is routed to a single,
		// deterministic node so unrelated clients don't each pick a
		// different shard for it (spec.md §4.2).
		if n := slotMap.FirstNode(); n != nil {
			req.NodeName = n.Name
		}
		return
	}

	argc := req.Argc()
	last := cmd.ResolvedLastKey(argc)
	haveNode := false
	var node *cluster.Node
	for i := cmd.FirstKey; i <= last; i += cmd.KeyStep {
		if i < 0 || i >= argc {
			continue
		}
		n, s := slotMap.NodeForKey(req.Arg(i))
		if !haveNode {
			haveNode = true
			node = n
			req.Slot = s
			req.HasSlot = true
			if n != nil {
				req.NodeName = n.Name
			}
			continue
		}
		// spec.md §4.2 / getRequestNode in proxy.c compare the derived
		// *shard*, not the slot: two untagged keys routinely land on
		// different slots that both belong to the same node, and that is
		// not a cross-slot error.
		if n != node {
			req.CrossSlotErr = true
			return
		}
	}
}
