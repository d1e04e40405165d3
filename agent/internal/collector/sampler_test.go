package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/han-fei/perfagent/agent/internal/models"
)

func TestSample_PrimaryBeforeReplica(t *testing.T) {
	records, err := ShardStateSampler{}.Sample(oneIndexState())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, models.ShardStateRecord{
		ShardType: models.ShardPrimary, IndexName: "test", ShardID: 0, NodeName: "node-1", ShardState: "STARTED",
	}, records[0])
	assert.Equal(t, models.ShardReplica, records[1].ShardType)
	assert.Equal(t, "node-2", records[1].NodeName)
}

func TestSample_Ordering(t *testing.T) {
	state := &models.ClusterState{
		Nodes: twoNodeNodes(),
		RoutingTable: []models.IndexRoutingTable{
			{Index: "zeta", Shards: []models.ShardRouting{
				{ShardID: 2, Primary: true, State: models.ShardStarted, CurrentNodeID: "n1"},
				{ShardID: 1, Primary: false, State: models.ShardStarted, CurrentNodeID: "n1"},
				{ShardID: 1, Primary: true, State: models.ShardStarted, CurrentNodeID: "n2"},
			}},
			{Index: "alpha", Shards: []models.ShardRouting{
				{ShardID: 0, Primary: true, State: models.ShardStarted, CurrentNodeID: "n1"},
			}},
		},
	}

	records, err := ShardStateSampler{}.Sample(state)
	require.NoError(t, err)

	type key struct {
		index string
		id    int
		typ   models.ShardType
	}
	var got []key
	for _, r := range records {
		got = append(got, key{r.IndexName, r.ShardID, r.ShardType})
	}
	assert.Equal(t, []key{
		{"zeta", 1, models.ShardPrimary},
		{"zeta", 1, models.ShardReplica},
		{"zeta", 2, models.ShardPrimary},
		{"alpha", 0, models.ShardPrimary},
	}, got)
}

func TestSample_UnassignedAndRelocating(t *testing.T) {
	state := &models.ClusterState{
		Nodes: twoNodeNodes(),
		RoutingTable: []models.IndexRoutingTable{
			{Index: "logs", Shards: []models.ShardRouting{
				{ShardID: 0, Primary: true, State: models.ShardRelocating, CurrentNodeID: "n1", RelocatingNodeID: "n2"},
				{ShardID: 0, Primary: false, State: models.ShardUnassigned},
				{ShardID: 1, Primary: true, CurrentNodeID: "gone"},
				{ShardID: 1, Primary: false},
			}},
		},
	}

	records, err := ShardStateSampler{}.Sample(state)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "RELOCATING", records[0].ShardState)
	assert.Equal(t, "node-2", records[0].RelocatingNodeName)

	assert.Equal(t, "UNASSIGNED", records[1].ShardState)
	assert.Empty(t, records[1].NodeName)

	// 节点不在快照中时使用节点ID
	assert.Equal(t, "gone", records[2].NodeName)
	assert.Equal(t, "STARTED", records[2].ShardState)
	assert.Equal(t, "UNASSIGNED", records[3].ShardState)
}

func TestSample_Empty(t *testing.T) {
	records, err := ShardStateSampler{}.Sample(&models.ClusterState{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	records, err = ShardStateSampler{}.Sample(&models.ClusterState{
		RoutingTable: []models.IndexRoutingTable{{Index: "empty"}},
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSample_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		state *models.ClusterState
	}{
		{"nil state", nil},
		{"empty index name", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{{Index: ""}}}},
		{"negative shard id", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{
			{Index: "a", Shards: []models.ShardRouting{{ShardID: -1, Primary: true}}},
		}}},
		{"mismatched index", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{
			{Index: "a", Shards: []models.ShardRouting{{Index: "b", ShardID: 0, Primary: true}}},
		}}},
		{"invalid utf-8 index name", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{
			{Index: "a\xffb\nc", Shards: []models.ShardRouting{{ShardID: 0, Primary: true, CurrentNodeID: "n1"}}},
		}}},
		{"invalid utf-8 node name", &models.ClusterState{
			Nodes: map[string]models.DiscoveryNode{"n1": {ID: "n1", Name: "node\xfe"}},
			RoutingTable: []models.IndexRoutingTable{
				{Index: "a", Shards: []models.ShardRouting{{ShardID: 0, Primary: true, CurrentNodeID: "n1"}}},
			},
		}},
		{"invalid utf-8 relocating node", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{
			{Index: "a", Shards: []models.ShardRouting{
				{ShardID: 0, Primary: true, State: models.ShardRelocating, CurrentNodeID: "n1", RelocatingNodeID: "\xc3"},
			}},
		}}},
		{"duplicate copy", &models.ClusterState{RoutingTable: []models.IndexRoutingTable{
			{Index: "a", Shards: []models.ShardRouting{
				{ShardID: 0, Primary: false, CurrentNodeID: "n1"},
				{ShardID: 0, Primary: false, CurrentNodeID: "n1"},
			}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ShardStateSampler{}.Sample(tt.state)
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestSample_DoesNotMutate(t *testing.T) {
	state := oneIndexState()
	before := oneIndexState()
	_, err := ShardStateSampler{}.Sample(state)
	require.NoError(t, err)
	assert.Equal(t, before, state)
}
