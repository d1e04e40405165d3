package service

import (
	"context"

	"github.com/han-fei/perfagent/agent/internal/models"
)

// Sink 写入端，接收从事件队列取出的事件
type Sink interface {
	// Name 写入端名称
	Name() string

	// Write 写入一批事件，顺序与入队顺序一致
	Write(ctx context.Context, events []models.Event) error

	// Close 释放连接
	Close() error
}
