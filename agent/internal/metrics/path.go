// Package metrics 计算采集数据的时间桶与存储路径
package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultSamplingInterval 默认采样间隔（毫秒）
	DefaultSamplingInterval int64 = 5000

	// DefaultMetricsLocation 默认指标根目录
	DefaultMetricsLocation = "/dev/shm/performanceanalyzer"

	// ShardStatePath 分片状态指标子路径
	ShardStatePath = "shard_state"
)

// InvocationError 调用方违反了参数约定
type InvocationError struct {
	Op       string
	Passed   int
	Expected int
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %d values passed; %d expected", e.Op, e.Passed, e.Expected)
}

// TimeBucket 将时间戳向下取整到间隔边界，负时间戳同样向下取整。
// 边界低于 math.MinInt64 时（时间戳接近 MinInt64）结果不可表示，返回 math.MinInt64；
// Resolve 对这种时间戳返回错误。
func TimeBucket(timestampMillis, intervalMillis int64) int64 {
	bucket, ok := timeBucket(timestampMillis, intervalMillis)
	if !ok {
		return math.MinInt64
	}
	return bucket
}

func timeBucket(timestampMillis, intervalMillis int64) (int64, bool) {
	n := timestampMillis / intervalMillis
	if timestampMillis%intervalMillis != 0 && timestampMillis < 0 {
		n--
	}
	if n < math.MinInt64/intervalMillis {
		return 0, false
	}
	return n * intervalMillis, true
}

// Resolve 计算 base/<时间桶>/subpath。
// extra 只用于检查调用方是否多传了参数，传入任何值都会返回 InvocationError。
func Resolve(base string, timestampMillis, intervalMillis int64, subpath string, extra ...string) (string, error) {
	if len(extra) != 0 {
		return "", &InvocationError{Op: "resolve metrics path", Passed: len(extra), Expected: 0}
	}
	if intervalMillis <= 0 {
		return "", fmt.Errorf("resolve metrics path: interval must be positive, got %d: %w",
			intervalMillis, &InvocationError{Op: "resolve metrics path", Passed: 1, Expected: 0})
	}

	bucket, ok := timeBucket(timestampMillis, intervalMillis)
	if !ok {
		return "", fmt.Errorf("resolve metrics path: timestamp %d has no representable bucket for interval %d: %w",
			timestampMillis, intervalMillis, &InvocationError{Op: "resolve metrics path", Passed: 1, Expected: 0})
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "/"))
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatInt(bucket, 10))
	sb.WriteByte('/')
	sb.WriteString(subpath)
	return sb.String(), nil
}

// Resolver 绑定根目录与采样间隔的路径解析器
type Resolver struct {
	Base     string
	Interval int64
}

// NewResolver 创建路径解析器，非正间隔回退到默认值
func NewResolver(base string, intervalMillis int64) Resolver {
	if base == "" {
		base = DefaultMetricsLocation
	}
	if intervalMillis <= 0 {
		intervalMillis = DefaultSamplingInterval
	}
	return Resolver{Base: base, Interval: intervalMillis}
}

// Path 计算子路径的存储位置
func (r Resolver) Path(timestampMillis int64, subpath string, extra ...string) (string, error) {
	return Resolve(r.Base, timestampMillis, r.Interval, subpath, extra...)
}

// Bucket 时间戳所在的时间桶
func (r Resolver) Bucket(timestampMillis int64) int64 {
	return TimeBucket(timestampMillis, r.Interval)
}
