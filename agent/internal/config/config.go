package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/han-fei/perfagent/agent/internal/metrics"
)

// Config 采集代理配置
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Collect   CollectConfig   `yaml:"collect"`
	Queue     QueueConfig     `yaml:"queue"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Writer    WriterConfig    `yaml:"writer"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Overrides OverridesConfig `yaml:"overrides"`
}

// AgentConfig 代理基本配置
type AgentConfig struct {
	NodeID   string `yaml:"node_id"`  // 所在引擎节点ID
	Hostname string `yaml:"hostname"` // 主机名
}

// CollectConfig 采集配置
type CollectConfig struct {
	Interval        time.Duration `yaml:"interval"`         // 采样间隔，同时决定时间桶大小
	MetricsLocation string        `yaml:"metrics_location"` // 指标根目录
	DrainInterval   time.Duration `yaml:"drain_interval"`   // 写入端取出队列的间隔
}

// IntervalMillis 采样间隔（毫秒）
func (c CollectConfig) IntervalMillis() int64 {
	return c.Interval.Milliseconds()
}

// QueueConfig 事件队列配置
type QueueConfig struct {
	Capacity int `yaml:"capacity"` // 0 表示不限
}

// ClusterConfig 集群状态来源配置
type ClusterConfig struct {
	Endpoint           string        `yaml:"endpoint"` // 本地引擎 HTTP 地址
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// WriterConfig 文件写入配置
type WriterConfig struct {
	FileEnabled bool `yaml:"file_enabled"` // 是否按指标路径写文件
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`       // 是否启用Kafka
	Brokers      []string      `yaml:"brokers"`       // Kafka服务器地址列表
	Topic        string        `yaml:"topic"`         // 主题名称
	BatchSize    int           `yaml:"batch_size"`    // 批处理大小
	BatchTimeout time.Duration `yaml:"batch_timeout"` // 批处理超时时间
	MaxRetry     int           `yaml:"max_retry"`     // 最大重试次数
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // 日志级别
	Format string `yaml:"format"` // JSON 或 CONSOLE
}

// APIConfig 管理接口配置
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// OverridesConfig 采集器开关配置。
// File 非空时从该文件加载并监听变化，否则使用内联的 Enable/Disable。
type OverridesConfig struct {
	File    string   `yaml:"file"`
	Enable  []string `yaml:"enable"`
	Disable []string `yaml:"disable"`
}

// Initial 启动时的开关快照
func (o OverridesConfig) Initial() *Overrides {
	return &Overrides{
		Enable:  OverrideSet{Collectors: append([]string(nil), o.Enable...)},
		Disable: OverrideSet{Collectors: append([]string(nil), o.Disable...)},
	}
}

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML配置并补全默认值
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 全部使用默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Collect.Interval == 0 {
		c.Collect.Interval = time.Duration(metrics.DefaultSamplingInterval) * time.Millisecond
	}
	if c.Collect.MetricsLocation == "" {
		c.Collect.MetricsLocation = metrics.DefaultMetricsLocation
	}
	if c.Collect.DrainInterval == 0 {
		c.Collect.DrainInterval = 1 * time.Second
	}
	if c.Cluster.Endpoint == "" {
		c.Cluster.Endpoint = "http://localhost:9200"
	}
	if c.Cluster.Timeout == 0 {
		c.Cluster.Timeout = 5 * time.Second
	}

	// 设置Kafka默认值
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}
	if c.Kafka.MaxRetry == 0 {
		c.Kafka.MaxRetry = 3
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "pa-metrics"
	}

	// 设置Redis默认值
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "pa:"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 10 * time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "JSON"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":9600"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Collect.Interval <= 0 {
		return fmt.Errorf("collect.interval 必须为正数，当前为 %v", c.Collect.Interval)
	}
	if c.Collect.IntervalMillis() <= 0 {
		return fmt.Errorf("collect.interval 至少为 1ms，当前为 %v", c.Collect.Interval)
	}
	if c.Collect.MetricsLocation == "" {
		return fmt.Errorf("collect.metrics_location 不能为空")
	}
	if c.Collect.DrainInterval <= 0 {
		return fmt.Errorf("collect.drain_interval 必须为正数，当前为 %v", c.Collect.DrainInterval)
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity 不能为负数")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka 已启用但未配置 brokers")
	}
	return nil
}
