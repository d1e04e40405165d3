// Package queue 采集器与写入端之间的事件缓冲
package queue

import (
	"sync"

	"github.com/han-fei/perfagent/agent/internal/models"
)

// Errors
var (
	ErrQueueClosed = &QueueError{"event queue is closed"}
	ErrQueueFull   = &QueueError{"event queue is full"}
)

// QueueError 事件队列错误
type QueueError struct {
	msg string
}

func (e *QueueError) Error() string {
	return e.msg
}

// Stats 队列统计信息
type Stats struct {
	Depth    int   `json:"depth"`
	Capacity int   `json:"capacity"`
	Pushed   int64 `json:"pushed"`
	Drained  int64 `json:"drained"`
	Rejected int64 `json:"rejected"`
	Closed   bool  `json:"closed"`
}

// EventQueue 并发安全的追加/整体取出缓冲区。
// capacity <= 0 表示不限容量。
type EventQueue struct {
	mu       sync.Mutex
	events   []models.Event
	capacity int
	closed   bool

	pushed   int64
	drained  int64
	rejected int64
}

// NewEventQueue 创建事件队列
func NewEventQueue(capacity int) *EventQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &EventQueue{capacity: capacity}
}

// Push 追加一个事件，事件要么完整入队要么不入队
func (q *EventQueue) Push(event models.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.rejected++
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.events) >= q.capacity {
		q.rejected++
		return ErrQueueFull
	}

	q.events = append(q.events, event)
	q.pushed++
	return nil
}

// DrainAll 按入队顺序取出全部事件并清空队列，空队列返回空切片
func (q *EventQueue) DrainAll() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return []models.Event{}
	}

	out := q.events
	q.events = nil
	q.drained += int64(len(out))
	return out
}

// Len 当前队列长度
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Stats 获取统计信息
func (q *EventQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Depth:    len(q.events),
		Capacity: q.capacity,
		Pushed:   q.pushed,
		Drained:  q.drained,
		Rejected: q.rejected,
		Closed:   q.closed,
	}
}

// Close 关闭队列，之后的 Push 返回 ErrQueueClosed，剩余事件仍可取出
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
