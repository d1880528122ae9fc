package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
)

func TestArenaAllocatesDistinctIDs(t *testing.T) {
	a := NewArena()
	r1 := a.New(1)
	r2 := a.New(1)
	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Same(t, r1, a.Get(r1.ID))
	assert.Same(t, r2, a.Get(r2.ID))
}

func TestArenaReusesFreedSlot(t *testing.T) {
	a := NewArena()
	r1 := a.New(1)
	id := r1.ID
	a.Free(id)

	r2 := a.New(2)
	assert.Equal(t, id, r2.ID)
	assert.Equal(t, uint64(2), r2.ClientID)
}

func TestArenaGetNoIDIsNil(t *testing.T) {
	a := NewArena()
	assert.Nil(t, a.Get(proto.NoID))
}
