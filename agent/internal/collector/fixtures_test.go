package collector

import (
	"context"
	"sync/atomic"

	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/models"
)

const (
	testTimestamp = int64(1153721339)
	testBase      = "/dev/shm/performanceanalyzer"
)

func enabledOverrides() *config.OverridesHolder {
	return config.NewOverridesHolder(&config.Overrides{
		Enable: config.OverrideSet{Collectors: []string{ShardStateCollectorName}},
	})
}

func twoNodeNodes() map[string]models.DiscoveryNode {
	return map[string]models.DiscoveryNode{
		"n1": {ID: "n1", Name: "node-1"},
		"n2": {ID: "n2", Name: "node-2"},
	}
}

// oneIndexState 名为 test 的索引，一个主分片一个副本分片
func oneIndexState() *models.ClusterState {
	return &models.ClusterState{
		ClusterName: "pa-test",
		Nodes:       twoNodeNodes(),
		RoutingTable: []models.IndexRoutingTable{
			{
				Index: "test",
				Shards: []models.ShardRouting{
					{Index: "test", ShardID: 0, Primary: false, State: models.ShardStarted, CurrentNodeID: "n2"},
					{Index: "test", ShardID: 0, Primary: true, State: models.ShardStarted, CurrentNodeID: "n1"},
				},
			},
		},
	}
}

// countingProvider 记录取快照次数
type countingProvider struct {
	calls atomic.Int32
	state *models.ClusterState
	err   error
}

func (p *countingProvider) State(context.Context) (*models.ClusterState, error) {
	p.calls.Add(1)
	return p.state, p.err
}

// recordingGate 记录被查询的名称
type recordingGate struct {
	enabled bool
	names   []string
}

func (g *recordingGate) IsCollectorEnabled(_ *config.Overrides, name string) bool {
	g.names = append(g.names, name)
	return g.enabled
}
