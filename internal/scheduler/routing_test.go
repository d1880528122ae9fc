package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
)

func twoShardSlotMap(t *testing.T) *cluster.SlotMap {
	t.Helper()
	s0 := &cluster.Node{Name: "s0", IP: "127.0.0.1", Port: 7001}
	s1 := &cluster.Node{Name: "s1", IP: "127.0.0.1", Port: 7002}
	for i := 0; i < cluster.NumSlots/2; i++ {
		s0.Slots = append(s0.Slots, i)
	}
	for i := cluster.NumSlots / 2; i < cluster.NumSlots; i++ {
		s1.Slots = append(s1.Slots, i)
	}
	sm, err := cluster.Build([]*cluster.Node{s0, s1})
	require.NoError(t, err)
	return sm
}

func parsedRequest(t *testing.T, raw string) *proto.Request {
	t.Helper()
	req := &proto.Request{Raw: []byte(raw)}
	proto.Parse(req)
	require.Equal(t, proto.StateOK, req.State)
	return req
}

func TestRouteRequestSingleKey(t *testing.T) {
	sm := twoShardSlotMap(t)
	req := parsedRequest(t, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")
	routeRequest(req, sm)
	assert.False(t, req.UnknownCmd)
	assert.False(t, req.CrossSlotErr)
	assert.NotEmpty(t, req.NodeName)
	assert.True(t, req.HasSlot)
}

func TestRouteRequestCrossSlotError(t *testing.T) {
	sm := twoShardSlotMap(t)
	// "foo" (slot 12182) and "bar" (slot 5061) fall on different shards
	// of this two-shard map, so a multi-key MGET spanning them must be
	// rejected.
	req := parsedRequest(t, "*3\r\n$4\r\nMGET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	routeRequest(req, sm)
	assert.True(t, req.CrossSlotErr)
}

func TestRouteRequestTaggedKeysShareSlot(t *testing.T) {
	sm := twoShardSlotMap(t)
	req := parsedRequest(t, "*3\r\n$4\r\nMGET\r\n$8\r\n{foo}bar\r\n$8\r\n{foo}baz\r\n")
	routeRequest(req, sm)
	assert.False(t, req.CrossSlotErr)
	assert.NotEmpty(t, req.NodeName)
}

func TestRouteRequestNoKeyCommandIsDeterministic(t *testing.T) {
	sm := twoShardSlotMap(t)
	req := parsedRequest(t, "*1\r\n$4\r\nPING\r\n")
	routeRequest(req, sm)
	assert.False(t, req.HasSlot)
	assert.Equal(t, sm.FirstNode().Name, req.NodeName)
}

func TestRouteRequestUnsupportedCommand(t *testing.T) {
	sm := twoShardSlotMap(t)
	req := parsedRequest(t, "*1\r\n$5\r\nMULTI\r\n")
	routeRequest(req, sm)
	assert.True(t, req.Unsupported)
}

func TestRouteRequestUnknownCommand(t *testing.T) {
	sm := twoShardSlotMap(t)
	req := parsedRequest(t, "*1\r\n$7\r\nBOGUSXX\r\n")
	routeRequest(req, sm)
	assert.True(t, req.UnknownCmd)
}
