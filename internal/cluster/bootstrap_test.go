package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleClusterNodes = `07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30004@31004 slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected
67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002 master - 0 1426238316232 2 connected 5461-10922
292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 127.0.0.1:30003@31003 master - 0 1426238318243 3 connected 10923-16383
6ec23923021cf3ffec47632106199cb7f496ce01 127.0.0.1:30005@31005 slave 67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 0 1426238316232 5 connected
824fe116063bc5fcf9f4ffd895bc17aa04999f28 127.0.0.1:30006@31006 slave 292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 0 1426238317741 6 connected
e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 127.0.0.1:30001@31001 myself,master - 0 0 1 connected 0-5460
`

func TestParseClusterNodesBasic(t *testing.T) {
	nodes, err := parseClusterNodes(sampleClusterNodes)
	require.NoError(t, err)
	require.Len(t, nodes, 6)

	var master0, slave0 *Node
	for _, n := range nodes {
		if n.Name == "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca" {
			master0 = n
		}
		if n.Name == "07c37dfeb235213a872192d90877d0cd55635b91" {
			slave0 = n
		}
	}
	require.NotNil(t, master0)
	require.NotNil(t, slave0)

	assert.Equal(t, "127.0.0.1", master0.IP)
	assert.Equal(t, 30001, master0.Port)
	assert.False(t, master0.IsReplica)
	require.Len(t, master0.Slots, 5461)
	assert.Equal(t, 0, master0.Slots[0])
	assert.Equal(t, 5460, master0.Slots[len(master0.Slots)-1])

	assert.True(t, slave0.IsReplica)
	assert.Equal(t, "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca", slave0.MasterID)
}

func TestParseClusterNodesBuildsCompleteSlotMap(t *testing.T) {
	nodes, err := parseClusterNodes(sampleClusterNodes)
	require.NoError(t, err)
	sm, err := Build(nodes)
	require.NoError(t, err)
	assert.Equal(t, "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca", sm.NodeForSlot(0).Name)
	assert.Equal(t, "67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1", sm.NodeForSlot(5461).Name)
	assert.Equal(t, "292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f", sm.NodeForSlot(16383).Name)
}

func TestApplySlotTokenMigratingImporting(t *testing.T) {
	node := &Node{Name: "n"}
	require.NoError(t, applySlotToken(node, "[100->-othernode]"))
	require.NoError(t, applySlotToken(node, "[200-<-srcnode]"))
	require.Len(t, node.Migrating, 1)
	require.Len(t, node.Importing, 1)
	assert.Equal(t, SlotRange{Slot: 100, Peer: "othernode"}, node.Migrating[0])
	assert.Equal(t, SlotRange{Slot: 200, Peer: "srcnode"}, node.Importing[0])
}

func TestParseNodeAddrStripsBusPort(t *testing.T) {
	ip, port, err := parseNodeAddr("127.0.0.1:30001@31001")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
	assert.Equal(t, 30001, port)
}
