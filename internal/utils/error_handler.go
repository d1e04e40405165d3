package utils

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeInvocation    ErrorType = "invocation"
	ErrorTypeSnapshot      ErrorType = "snapshot"
	ErrorTypeSerialization ErrorType = "serialization"
	ErrorTypeQueue         ErrorType = "queue"
	ErrorTypeSink          ErrorType = "sink"
	ErrorTypePanic         ErrorType = "panic"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorDetail 错误详情
type ErrorDetail struct {
	Source    string        `json:"source"`
	Type      ErrorType     `json:"type"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Stack     string        `json:"stack,omitempty"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Count     int           `json:"count"`
}

// ErrorHandler 错误处理器。
// 同一来源、同一类型的错误合并计数，超过上限时淘汰最久未出现的记录。
type ErrorHandler struct {
	errorDetails map[string]*ErrorDetail
	maxErrors    int
	now          func() time.Time
	mu           sync.RWMutex
}

// NewErrorHandler 创建新的错误处理器
func NewErrorHandler(maxErrors int) *ErrorHandler {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorHandler{
		errorDetails: make(map[string]*ErrorDetail),
		maxErrors:    maxErrors,
		now:          time.Now,
	}
}

// HandleError 处理错误
func (eh *ErrorHandler) HandleError(source string, err error, errorType ErrorType, severity ErrorSeverity) {
	if err == nil {
		return
	}

	eh.mu.Lock()
	defer eh.mu.Unlock()

	now := eh.now()
	key := source + "/" + string(errorType)

	detail, exists := eh.errorDetails[key]
	if exists {
		detail.Count++
		detail.LastSeen = now
		detail.Message = err.Error()
		detail.Severity = severity
	} else {
		detail = &ErrorDetail{
			Source:    source,
			Type:      errorType,
			Severity:  severity,
			Message:   err.Error(),
			FirstSeen: now,
			LastSeen:  now,
			Count:     1,
		}
		if severity == SeverityCritical {
			detail.Stack = string(debug.Stack())
		}
		eh.errorDetails[key] = detail
		eh.evictLocked()
	}

	// 根据严重程度选择日志级别
	log := zap.S()
	switch severity {
	case SeverityCritical, SeverityHigh:
		log.Errorf("%s 错误 [%s/%s] 第%d次: %v", source, errorType, severity, detail.Count, err)
	case SeverityMedium:
		log.Warnf("%s 错误 [%s/%s] 第%d次: %v", source, errorType, severity, detail.Count, err)
	default:
		log.Infof("%s 错误 [%s/%s] 第%d次: %v", source, errorType, severity, detail.Count, err)
	}
}

// evictLocked 超出上限时删除最久未出现的记录
func (eh *ErrorHandler) evictLocked() {
	for len(eh.errorDetails) > eh.maxErrors {
		oldestKey := ""
		var oldest time.Time
		for key, detail := range eh.errorDetails {
			if oldestKey == "" || detail.LastSeen.Before(oldest) {
				oldestKey = key
				oldest = detail.LastSeen
			}
		}
		delete(eh.errorDetails, oldestKey)
	}
}

// GetErrors 获取错误列表，按最近出现时间倒序
func (eh *ErrorHandler) GetErrors() []ErrorDetail {
	eh.mu.RLock()
	defer eh.mu.RUnlock()

	errors := make([]ErrorDetail, 0, len(eh.errorDetails))
	for _, detail := range eh.errorDetails {
		errors = append(errors, *detail)
	}
	sort.Slice(errors, func(i, j int) bool {
		return errors[i].LastSeen.After(errors[j].LastSeen)
	})
	return errors
}

// GetErrorsByType 根据类型获取错误
func (eh *ErrorHandler) GetErrorsByType(errorType ErrorType) []ErrorDetail {
	var out []ErrorDetail
	for _, detail := range eh.GetErrors() {
		if detail.Type == errorType {
			out = append(out, detail)
		}
	}
	return out
}

// GetErrorCount 错误总次数
func (eh *ErrorHandler) GetErrorCount() int {
	eh.mu.RLock()
	defer eh.mu.RUnlock()

	total := 0
	for _, detail := range eh.errorDetails {
		total += detail.Count
	}
	return total
}

// ClearErrors 清空错误记录
func (eh *ErrorHandler) ClearErrors() {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.errorDetails = make(map[string]*ErrorDetail)
}

// PanicError 采集过程中恢复的 panic
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// SafeCall 执行 fn，将 panic 转换为 *PanicError 返回
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}
