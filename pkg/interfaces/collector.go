// Package interfaces 定义了系统中的核心接口
package interfaces

// Collector 定义了指标采集器的接口
type Collector interface {
	// Name 采集器注册名，也是启用开关的查询键
	Name() string

	// MetricsPath 本次采样数据的存储路径
	MetricsPath(timestampMillis int64) string

	// Collect 执行一次采样并把结果推入事件队列。
	// 采集器被禁用时直接返回 nil。
	Collect(timestampMillis int64) error
}
