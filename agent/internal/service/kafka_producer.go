package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/models"
)

// messageWriter kafka.Writer 中用到的方法
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink Kafka写入端
type KafkaSink struct {
	config *config.KafkaConfig
	writer messageWriter
}

// NewKafkaSink 创建新的Kafka写入端
func NewKafkaSink(cfg *config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers 未配置")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaSink{config: cfg, writer: writer}, nil
}

// Name 实现 Sink
func (s *KafkaSink) Name() string {
	return "kafka"
}

// buildMessages 每个事件一条消息，按存储路径分区以保持同一路径的顺序
func buildMessages(events []models.Event) []kafka.Message {
	messages := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		messages = append(messages, kafka.Message{
			Key:   []byte(e.Key),
			Value: []byte(e.Value),
			Headers: []kafka.Header{
				{Key: "tag", Value: []byte(e.Tag)},
				{Key: "epoch", Value: []byte(strconv.FormatInt(e.Epoch, 10))},
			},
			Time: time.Now(),
		})
	}
	return messages
}

// Write 实现 Sink，失败时指数退避重试
func (s *KafkaSink) Write(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := buildMessages(events)

	attempt := 0
	op := func() error {
		attempt++
		err := s.writer.WriteMessages(ctx, messages...)
		if err != nil {
			zap.S().Warnf("发送数据到Kafka失败 (尝试 %d/%d): %v", attempt, s.maxAttempts(), err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxAttempts()-1)), ctx)
	return backoff.Retry(op, retry)
}

func (s *KafkaSink) maxAttempts() int {
	if s.config.MaxRetry <= 0 {
		return 1
	}
	return s.config.MaxRetry
}

// Close 关闭Kafka写入端
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
