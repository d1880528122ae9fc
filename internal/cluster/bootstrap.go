package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// bootstrapTimeout bounds the one-time CLUSTER NODES round-trip; the
// proxy never uses go-redis again after bootstrap completes, since the
// hot path speaks the wire protocol directly (internal/upstream).
const bootstrapTimeout = 5 * time.Second

// Bootstrap connects to seed (a "host:port" address), issues CLUSTER
// NODES and parses the reply into a SlotMap, mirroring
// fetchClusterConfiguration in _examples/original_source/src/cluster.c.
// It is the only place in this proxy that uses a full-featured Redis
// client library (go-redis/v8, grounded on
// pavandhadge-vectron/reranker/internal/cache/redis.go) rather than the
// proxy's own minimal wire codec, because bootstrap is a one-shot
// request/reply exchange with no need for the scheduler's pipelining.
func Bootstrap(seed string) (*SlotMap, []*Node, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        seed,
		DialTimeout: bootstrapTimeout,
		ReadTimeout: bootstrapTimeout,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	raw, err := client.Do(ctx, "CLUSTER", "NODES").Text()
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: CLUSTER NODES on %s: %w", seed, err)
	}

	nodes, err := parseClusterNodes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: parsing CLUSTER NODES reply: %w", err)
	}
	slotMap, err := Build(nodes)
	if err != nil {
		return nil, nil, err
	}
	return slotMap, nodes, nil
}

// parseClusterNodes parses the text format described in spec.md §6:
// one line per node, space-separated fields
// "name addr flags master_id ping pong epoch link-state [slots...]".
func parseClusterNodes(raw string) ([]*Node, error) {
	var nodes []*Node
	for _, line := range strings.Split(strings.TrimRight(raw, "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		node, err := parseClusterNodeLine(line)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("empty CLUSTER NODES reply")
	}
	return nodes, nil
}

func parseClusterNodeLine(line string) (*Node, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, fmt.Errorf("invalid CLUSTER NODES line: %q", line)
	}
	name, addr, flags, masterID := fields[0], fields[1], fields[2], fields[3]

	ip, port, err := parseNodeAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	node := &Node{
		IP:   ip,
		Port: port,
		Name: name,
	}
	node.IsReplica = strings.Contains(flags, "slave") || (masterID != "-" && masterID != "")
	if node.IsReplica {
		node.MasterID = masterID
	}

	for _, tok := range fields[8:] {
		if err := applySlotToken(node, tok); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// parseNodeAddr splits "ip:port[@busport]" into ip and port, dropping
// the cluster-bus port.
func parseNodeAddr(addr string) (string, int, error) {
	host, portPart, ok := strings.Cut(addr, ":")
	if !ok {
		return "", 0, fmt.Errorf("missing ':' in address")
	}
	portPart, _, _ = strings.Cut(portPart, "@")
	port, err := strconv.Atoi(portPart)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portPart, err)
	}
	return host, port, nil
}

// applySlotToken handles one whitespace-separated slots-field token:
// a single slot "N", a range "N-M", a migrating marker "[N->-dstid]" or
// an importing marker "[N-<-srcid]".
func applySlotToken(node *Node, tok string) error {
	if strings.HasPrefix(tok, "[") {
		inner := strings.TrimSuffix(strings.TrimPrefix(tok, "["), "]")
		if slotStr, dst, ok := strings.Cut(inner, "->-"); ok {
			slot, err := strconv.Atoi(slotStr)
			if err != nil {
				return fmt.Errorf("invalid migrating slot in %q: %w", tok, err)
			}
			node.Migrating = append(node.Migrating, SlotRange{Slot: slot, Peer: dst})
			return nil
		}
		if slotStr, src, ok := strings.Cut(inner, "-<-"); ok {
			slot, err := strconv.Atoi(slotStr)
			if err != nil {
				return fmt.Errorf("invalid importing slot in %q: %w", tok, err)
			}
			node.Importing = append(node.Importing, SlotRange{Slot: slot, Peer: src})
			return nil
		}
		return fmt.Errorf("unrecognized slot marker %q", tok)
	}
	if start, stop, ok := strings.Cut(tok, "-"); ok {
		lo, err := strconv.Atoi(start)
		if err != nil {
			return fmt.Errorf("invalid slot range start in %q: %w", tok, err)
		}
		hi, err := strconv.Atoi(stop)
		if err != nil {
			return fmt.Errorf("invalid slot range end in %q: %w", tok, err)
		}
		for s := lo; s <= hi; s++ {
			node.Slots = append(node.Slots, s)
		}
		return nil
	}
	slot, err := strconv.Atoi(tok)
	if err != nil {
		return fmt.Errorf("invalid slot token %q: %w", tok, err)
	}
	node.Slots = append(node.Slots, slot)
	return nil
}
