package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/han-fei/perfagent/agent/internal/api"
	"github.com/han-fei/perfagent/agent/internal/cluster"
	"github.com/han-fei/perfagent/agent/internal/collector"
	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/logger"
	"github.com/han-fei/perfagent/agent/internal/metrics"
	"github.com/han-fei/perfagent/agent/internal/queue"
	"github.com/han-fei/perfagent/agent/internal/service"
)

var (
	configFile string
)

func init() {
	flag.StringVar(&configFile, "config", "configs/agent.yaml", "配置文件路径")
}

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置文件失败: %v\n", err)
		os.Exit(1)
	}

	restore := logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer restore()

	if err := run(cfg); err != nil {
		zap.S().Errorf("性能分析代理异常退出: %v", err)
		restore()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := zap.S()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	holder := config.NewOverridesHolder(initialOverrides(cfg))

	provider, err := cluster.NewHTTPProvider(cluster.HTTPConfig{
		BaseURL:            cfg.Cluster.Endpoint,
		Username:           cfg.Cluster.Username,
		Password:           cfg.Cluster.Password,
		InsecureSkipVerify: cfg.Cluster.InsecureSkipVerify,
		Timeout:            cfg.Cluster.Timeout,
	})
	if err != nil {
		return fmt.Errorf("创建集群状态来源失败: %w", err)
	}

	eventQueue := queue.NewEventQueue(cfg.Queue.Capacity)
	resolver := metrics.NewResolver(cfg.Collect.MetricsLocation, cfg.Collect.IntervalMillis())

	manager := collector.NewManager(collector.ManagerOptions{
		Interval:      cfg.Collect.Interval,
		DrainInterval: cfg.Collect.DrainInterval,
	}, eventQueue)
	manager.RegisterCollector(collector.NewShardStateCollector(holder, provider, eventQueue, resolver))

	if err := registerSinks(cfg, manager); err != nil {
		return err
	}

	if cfg.Overrides.File != "" {
		manager.Go(func(ctx context.Context) error {
			return config.WatchOverrides(ctx, cfg.Overrides.File, holder)
		})
	}

	log.Infof("性能分析代理已启动: 节点=%s 指标目录=%s 间隔=%v",
		cfg.Agent.NodeID, cfg.Collect.MetricsLocation, cfg.Collect.Interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	if cfg.API.Enabled {
		server := api.NewServer(cfg.API.Listen, holder, eventQueue, manager.Errors())
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("性能分析代理已关闭")
	return err
}

// initialOverrides 优先使用开关文件，读取失败时退回内联配置
func initialOverrides(cfg *config.Config) *config.Overrides {
	if cfg.Overrides.File == "" {
		return cfg.Overrides.Initial()
	}
	o, err := config.LoadOverridesFile(cfg.Overrides.File)
	if err != nil {
		zap.S().Warnf("加载采集器开关文件失败，使用内联配置: %v", err)
		return cfg.Overrides.Initial()
	}
	return o
}

// registerSinks 按配置注册写入端
func registerSinks(cfg *config.Config, manager *collector.Manager) error {
	if cfg.Writer.FileEnabled {
		manager.RegisterSink(service.NewFileSink())
	}

	if cfg.Kafka.Enabled {
		sink, err := service.NewKafkaSink(&cfg.Kafka)
		if err != nil {
			return fmt.Errorf("创建Kafka写入端失败: %w", err)
		}
		zap.S().Infof("Kafka写入端已启用，连接到: %v, 主题: %s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
		manager.RegisterSink(sink)
	}

	if cfg.Redis.Enabled {
		sink, err := service.NewRedisSink(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("创建Redis写入端失败: %w", err)
		}
		zap.S().Infof("Redis写入端已启用，地址: %s", cfg.Redis.Address)
		manager.RegisterSink(sink)
	}
	return nil
}
