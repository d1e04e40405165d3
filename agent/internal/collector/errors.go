package collector

import (
	"errors"

	"github.com/han-fei/perfagent/agent/internal/metrics"
	"github.com/han-fei/perfagent/internal/utils"
)

// 一次采集失败的原因，均只影响当前这一次采集
var (
	ErrSnapshotUnavailable = errors.New("cluster snapshot unavailable")
	ErrSerialization       = errors.New("metric serialization failed")
	ErrQueueRejected       = errors.New("event queue rejected event")
	ErrMalformedSnapshot   = errors.New("malformed cluster snapshot")
)

// classify 把采集错误映射为错误类型与严重程度
func classify(err error) (utils.ErrorType, utils.ErrorSeverity) {
	var invErr *metrics.InvocationError
	var panicErr *utils.PanicError
	switch {
	case errors.As(err, &panicErr):
		return utils.ErrorTypePanic, utils.SeverityCritical
	case errors.As(err, &invErr):
		return utils.ErrorTypeInvocation, utils.SeverityHigh
	case errors.Is(err, ErrSnapshotUnavailable):
		return utils.ErrorTypeSnapshot, utils.SeverityMedium
	case errors.Is(err, ErrSerialization):
		return utils.ErrorTypeSerialization, utils.SeverityHigh
	case errors.Is(err, ErrQueueRejected):
		return utils.ErrorTypeQueue, utils.SeverityMedium
	default:
		return utils.ErrorTypeUnknown, utils.SeverityMedium
	}
}
