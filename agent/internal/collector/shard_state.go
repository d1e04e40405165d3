package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/han-fei/perfagent/agent/internal/cluster"
	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/metrics"
	"github.com/han-fei/perfagent/agent/internal/models"
)

// ShardStateCollectorName 分片状态采集器注册名，也是开关查询键
const ShardStateCollectorName = "ShardsStateCollector"

// OverridesSource 提供最新的采集器开关快照
type OverridesSource interface {
	Load() *config.Overrides
}

// EventPusher 事件队列的写入端
type EventPusher interface {
	Push(event models.Event) error
}

// payloadHeader 负载第一行
type payloadHeader struct {
	Collector string `json:"collector"`
	Metric    string `json:"metric"`
}

// payloadTime 负载第二行
type payloadTime struct {
	CurrentTime int64 `json:"current_time"`
}

// ShardStateCollector 分片状态采集器
type ShardStateCollector struct {
	gate      config.Gate
	overrides OverridesSource
	provider  cluster.StateProvider
	queue     EventPusher
	resolver  metrics.Resolver
	sampler   ShardStateSampler
	now       func() time.Time
}

// Option 采集器可选项
type Option func(*ShardStateCollector)

// WithGate 替换启用判断
func WithGate(gate config.Gate) Option {
	return func(c *ShardStateCollector) {
		c.gate = gate
	}
}

// WithClock 替换时钟，用于负载中的当前时间
func WithClock(now func() time.Time) Option {
	return func(c *ShardStateCollector) {
		c.now = now
	}
}

// NewShardStateCollector 创建分片状态采集器
func NewShardStateCollector(overrides OverridesSource, provider cluster.StateProvider, queue EventPusher, resolver metrics.Resolver, opts ...Option) *ShardStateCollector {
	c := &ShardStateCollector{
		gate:      config.DefaultGate{},
		overrides: overrides,
		provider:  provider,
		queue:     queue,
		resolver:  metrics.NewResolver(resolver.Base, resolver.Interval),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name 实现 interfaces.Collector
func (c *ShardStateCollector) Name() string {
	return ShardStateCollectorName
}

// MetricsPath 本次采样的存储路径
func (c *ShardStateCollector) MetricsPath(timestampMillis int64) string {
	path, err := c.MetricsPathWithKeys(timestampMillis)
	if err != nil {
		zap.S().Warnf("计算 %s 存储路径失败: %v", ShardStateCollectorName, err)
		return ""
	}
	return path
}

// MetricsPathWithKeys 带附加键的路径计算，分片状态路径不接受任何附加键
func (c *ShardStateCollector) MetricsPathWithKeys(timestampMillis int64, keys ...string) (string, error) {
	return c.resolver.Path(timestampMillis, metrics.ShardStatePath, keys...)
}

// Collect 执行一次采集。
// 被禁用时不取快照也不入队；任何一步失败都不会入队。
func (c *ShardStateCollector) Collect(timestampMillis int64) error {
	if !c.gate.IsCollectorEnabled(c.currentOverrides(), ShardStateCollectorName) {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeDisabled).Inc()
		return nil
	}

	path, err := c.MetricsPathWithKeys(timestampMillis)
	if err != nil {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomePathError).Inc()
		return err
	}

	state, err := c.provider.State(context.Background())
	if err == nil && state == nil {
		err = cluster.ErrNoState
	}
	if err != nil {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeSnapshotError).Inc()
		return fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}

	records, err := c.sampler.Sample(state)
	if err != nil {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeEncodeError).Inc()
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	value, err := c.encode(records)
	if err != nil {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeEncodeError).Inc()
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	event := models.Event{
		Key:   path,
		Tag:   metrics.ShardStatePath,
		Value: value,
		Epoch: c.resolver.Bucket(timestampMillis),
	}
	if err := c.queue.Push(event); err != nil {
		collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeQueueError).Inc()
		return fmt.Errorf("%w: %w", ErrQueueRejected, err)
	}

	collectPassesTotal.WithLabelValues(ShardStateCollectorName, outcomeSuccess).Inc()
	collectRecords.WithLabelValues(ShardStateCollectorName).Set(float64(len(records)))
	return nil
}

func (c *ShardStateCollector) currentOverrides() *config.Overrides {
	if c.overrides == nil {
		return nil
	}
	return c.overrides.Load()
}

// encode 生成负载：头部一行、时间一行，之后每条记录一行
func (c *ShardStateCollector) encode(records []models.ShardStateRecord) (string, error) {
	lines := make([]string, 0, len(records)+2)

	header, err := json.Marshal(payloadHeader{Collector: ShardStateCollectorName, Metric: metrics.ShardStatePath})
	if err != nil {
		return "", err
	}
	lines = append(lines, string(header))

	now, err := json.Marshal(payloadTime{CurrentTime: c.now().UnixMilli()})
	if err != nil {
		return "", err
	}
	lines = append(lines, string(now))

	for i := range records {
		line, err := json.Marshal(&records[i])
		if err != nil {
			return "", fmt.Errorf("record %d (%s/%d): %w", i, records[i].IndexName, records[i].ShardID, err)
		}
		lines = append(lines, string(line))
	}
	return strings.Join(lines, "\n"), nil
}
