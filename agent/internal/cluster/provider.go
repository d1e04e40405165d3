// Package cluster 提供集群状态快照
package cluster

import (
	"context"
	"errors"

	"github.com/han-fei/perfagent/agent/internal/models"
)

// ErrNoState 来源暂时没有可用的集群状态
var ErrNoState = errors.New("cluster state not available")

// StateProvider 集群状态来源。
// 返回的快照由调用方只读使用，不得修改。
type StateProvider interface {
	State(ctx context.Context) (*models.ClusterState, error)
}

// ProviderFunc 函数适配器
type ProviderFunc func(ctx context.Context) (*models.ClusterState, error)

// State 实现 StateProvider
func (f ProviderFunc) State(ctx context.Context) (*models.ClusterState, error) {
	return f(ctx)
}

// StaticProvider 固定快照，State 为空时返回 ErrNoState
type StaticProvider struct {
	Snapshot *models.ClusterState
}

// State 实现 StateProvider
func (p StaticProvider) State(_ context.Context) (*models.ClusterState, error) {
	if p.Snapshot == nil {
		return nil, ErrNoState
	}
	return p.Snapshot, nil
}
