package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/han-fei/perfagent/agent/internal/models"
	"github.com/han-fei/perfagent/agent/internal/queue"
	"github.com/han-fei/perfagent/agent/internal/service"
	"github.com/han-fei/perfagent/internal/utils"
	"github.com/han-fei/perfagent/pkg/interfaces"
)

// 使用pkg/interfaces中的Collector接口
type Collector = interfaces.Collector

// finalDrainTimeout 退出时最后一次写出的时限
const finalDrainTimeout = 5 * time.Second

// ManagerOptions 管理器参数
type ManagerOptions struct {
	Interval      time.Duration // 采样间隔
	DrainInterval time.Duration // 写入端取出队列的间隔
	MaxErrors     int           // 错误记录上限
}

// Manager 采集管理器。
// 每个采集器一个定时循环，另有一个循环定期取空事件队列并分发给所有写入端。
type Manager struct {
	opts       ManagerOptions
	queue      *queue.EventQueue
	errors     *utils.ErrorHandler
	now        func() time.Time
	background []func(ctx context.Context) error

	mu         sync.Mutex
	order      []string
	collectors map[string]Collector
	sinks      []service.Sink
}

// NewManager 创建采集管理器
func NewManager(opts ManagerOptions, q *queue.EventQueue) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = time.Second
	}
	return &Manager{
		opts:       opts,
		queue:      q,
		errors:     utils.NewErrorHandler(opts.MaxErrors),
		now:        time.Now,
		collectors: make(map[string]Collector),
	}
}

// RegisterCollector 注册采集器，同名采集器会被替换
func (m *Manager) RegisterCollector(c Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collectors[c.Name()]; !ok {
		m.order = append(m.order, c.Name())
	}
	m.collectors[c.Name()] = c
}

// RegisterSink 注册写入端
func (m *Manager) RegisterSink(s service.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Go 附加一个随 Run 启动的后台任务，例如开关文件监听。
// 后台任务出错只记录日志，不会终止采集。
func (m *Manager) Go(task func(ctx context.Context) error) {
	m.background = append(m.background, task)
}

// Errors 采集与写出过程中记录的错误
func (m *Manager) Errors() *utils.ErrorHandler {
	return m.errors
}

func (m *Manager) snapshot() ([]Collector, []service.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	collectors := make([]Collector, 0, len(m.order))
	for _, name := range m.order {
		collectors = append(collectors, m.collectors[name])
	}
	return collectors, append([]service.Sink(nil), m.sinks...)
}

// Run 启动采集，直到 ctx 结束。退出前把队列中剩余事件写出并关闭写入端。
func (m *Manager) Run(ctx context.Context) error {
	collectors, sinks := m.snapshot()
	log := zap.S()
	log.Infof("启动采集管理器: 采集器=%d 写入端=%d 间隔=%v", len(collectors), len(sinks), m.opts.Interval)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range collectors {
		c := c
		g.Go(func() error {
			m.collectLoop(gctx, c)
			return nil
		})
	}
	g.Go(func() error {
		m.drainLoop(gctx, sinks)
		return nil
	})
	for _, task := range m.background {
		task := task
		g.Go(func() error {
			if err := task(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("后台任务退出: %v", err)
			}
			return nil
		})
	}
	err := g.Wait()

	m.queue.Close()
	drainCtx, cancel := context.WithTimeout(context.Background(), finalDrainTimeout)
	defer cancel()
	if derr := m.drainOnce(drainCtx, sinks); derr != nil {
		log.Warnf("退出前写出剩余事件失败: %v", derr)
	}
	m.closeSinks(sinks)
	log.Info("采集管理器已停止")
	return err
}

// RunOnce 按注册顺序执行每个采集器一次，然后写出队列
func (m *Manager) RunOnce(ctx context.Context, timestampMillis int64) error {
	collectors, sinks := m.snapshot()
	var errs []error
	for _, c := range collectors {
		if err := m.runCollector(c, timestampMillis); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	if err := m.drainOnce(ctx, sinks); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// collectLoop 采集循环
func (m *Manager) collectLoop(ctx context.Context, c Collector) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.S().Debugf("采集循环 %s 退出", c.Name())
			return
		case <-ticker.C:
			_ = m.runCollector(c, m.now().UnixMilli())
		}
	}
}

// runCollector 执行一次采集，失败只影响本次
func (m *Manager) runCollector(c Collector, timestampMillis int64) error {
	err := utils.SafeCall(func() error {
		return c.Collect(timestampMillis)
	})
	if err != nil {
		errType, severity := classify(err)
		m.errors.HandleError(c.Name(), err, errType, severity)
	}
	return err
}

// drainLoop 写出循环
func (m *Manager) drainLoop(ctx context.Context, sinks []service.Sink) {
	ticker := time.NewTicker(m.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.drainOnce(ctx, sinks); err != nil {
				zap.S().Warnf("写出事件失败: %v", err)
			}
		}
	}
}

// drainOnce 取空队列，并行写给所有写入端。
// 取出的事件只交付一次，某个写入端失败不影响其他写入端。
func (m *Manager) drainOnce(ctx context.Context, sinks []service.Sink) error {
	events := m.queue.DrainAll()
	queueDepth.Set(float64(m.queue.Len()))
	if len(events) == 0 {
		return nil
	}
	eventsDrainedTotal.Add(float64(len(events)))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, s := range sinks {
		s := s
		g.Go(func() error {
			err := m.writeSink(ctx, s, events)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (m *Manager) writeSink(ctx context.Context, s service.Sink, events []models.Event) error {
	err := utils.SafeCall(func() error {
		return s.Write(ctx, events)
	})
	if err != nil {
		sinkWritesTotal.WithLabelValues(s.Name(), "error").Inc()
		m.errors.HandleError("sink/"+s.Name(), err, utils.ErrorTypeSink, utils.SeverityMedium)
		return fmt.Errorf("写入 %s 失败(%d 条事件): %w", s.Name(), len(events), err)
	}
	sinkWritesTotal.WithLabelValues(s.Name(), "ok").Inc()
	return nil
}

func (m *Manager) closeSinks(sinks []service.Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			zap.S().Warnf("关闭写入端 %s 失败: %v", s.Name(), err)
		}
	}
}
