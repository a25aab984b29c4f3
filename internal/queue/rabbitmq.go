package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"resume-search/internal/logger"
	"resume-search/internal/storage"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"github.com/rs/zerolog"
)

// EventTypeIngest outbox 消息的事件类型
const EventTypeIngest = "resume.ingest"

// Publisher 直接发布到交换机
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// RabbitEnqueuer 直接发布任务消息
type RabbitEnqueuer struct {
	publisher  Publisher
	exchange   string
	routingKey string
}

var _ Enqueuer = (*RabbitEnqueuer)(nil)

// NewRabbitEnqueuer 创建直接发布的投递器
func NewRabbitEnqueuer(publisher Publisher, exchange, routingKey string) *RabbitEnqueuer {
	return &RabbitEnqueuer{publisher: publisher, exchange: exchange, routingKey: routingKey}
}

// Enqueue 以持久化消息发布
func (e *RabbitEnqueuer) Enqueue(ctx context.Context, job *types.IngestJob) error {
	if err := e.publisher.PublishJSON(ctx, e.exchange, e.routingKey, job, true); err != nil {
		return fmt.Errorf("发布入库任务失败: %w", err)
	}
	return nil
}

// OutboxWriter 写 outbox 表
type OutboxWriter interface {
	InsertOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error
}

// OutboxEnqueuer 把任务写进 outbox 表，由中继异步发布，代理短暂不可用时任务不丢
type OutboxEnqueuer struct {
	writer     OutboxWriter
	exchange   string
	routingKey string
}

var _ Enqueuer = (*OutboxEnqueuer)(nil)

// NewOutboxEnqueuer 创建 outbox 投递器
func NewOutboxEnqueuer(writer OutboxWriter, exchange, routingKey string) *OutboxEnqueuer {
	return &OutboxEnqueuer{writer: writer, exchange: exchange, routingKey: routingKey}
}

// Enqueue 写入一条待投递消息
func (e *OutboxEnqueuer) Enqueue(ctx context.Context, job *types.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化入库任务失败: %w", err)
	}
	return e.writer.InsertOutboxMessage(ctx, &models.OutboxMessage{
		AggregateID:      job.JobID,
		EventType:        EventTypeIngest,
		Payload:          string(payload),
		TargetExchange:   e.exchange,
		TargetRoutingKey: e.routingKey,
		Status:           models.OutboxStatusPending,
	})
}

// DeliverySource 能启动消费者的消息代理
type DeliverySource interface {
	StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler storage.DeliveryHandler) (<-chan struct{}, error)
}

var (
	_ Publisher      = (*storage.RabbitMQ)(nil)
	_ OutboxWriter   = (*storage.MySQL)(nil)
	_ DeliverySource = (*storage.RabbitMQ)(nil)
)

// Consumer 从 RabbitMQ 消费入库任务。处理完即确认，需要重试时以 Attempt+1 重新投递
type Consumer struct {
	source     DeliverySource
	queueName  string
	prefetch   int
	workers    int
	handler    JobHandler
	retry      Enqueuer
	retryDelay time.Duration

	done []<-chan struct{}
	mu   sync.Mutex
	log  zerolog.Logger
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	QueueName  string
	Prefetch   int
	Workers    int
	RetryDelay time.Duration
}

// NewConsumer 创建消费者，retry 用于重新投递
func NewConsumer(source DeliverySource, cfg ConsumerConfig, handler JobHandler, retry Enqueuer) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		source:     source,
		queueName:  cfg.QueueName,
		prefetch:   cfg.Prefetch,
		workers:    cfg.Workers,
		handler:    handler,
		retry:      retry,
		retryDelay: cfg.RetryDelay,
		log:        logger.Component("ingest_consumer").With().Str("queue", cfg.QueueName).Logger(),
	}
}

// Start 每个 worker 使用独立的通道消费，ctx 取消后停止
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < c.workers; i++ {
		done, err := c.source.StartConsumer(ctx, c.queueName, c.prefetch, c.HandleDelivery)
		if err != nil {
			return fmt.Errorf("启动第 %d 个消费者失败: %w", i+1, err)
		}
		c.done = append(c.done, done)
	}
	c.log.Info().Int("workers", c.workers).Int("prefetch", c.prefetch).Msg("入库任务消费者已启动")
	return nil
}

// Wait 等待所有消费协程退出
func (c *Consumer) Wait() {
	c.mu.Lock()
	done := append([]<-chan struct{}(nil), c.done...)
	c.mu.Unlock()
	for _, d := range done {
		<-d
	}
}

// HandleDelivery 处理一条消息。无法解析的消息直接丢弃，避免反复投递
func (c *Consumer) HandleDelivery(ctx context.Context, body []byte) storage.DeliveryAction {
	var job types.IngestJob
	if err := json.Unmarshal(body, &job); err != nil || job.JobID == "" {
		c.log.Error().Err(err).Int("bytes", len(body)).Msg("无法解析的入库任务消息，已丢弃")
		return storage.DeliveryReject
	}

	if !c.handler(ctx, &job) {
		return storage.DeliveryAck
	}

	if c.retryDelay > 0 {
		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return storage.DeliveryRequeue
		case <-timer.C:
		}
	}

	next := nextAttempt(&job)
	if err := c.retry.Enqueue(ctx, next); err != nil {
		c.log.Error().Err(err).Str("job_id", job.JobID).Msg("重新投递失败，消息退回队列")
		return storage.DeliveryRequeue
	}
	c.log.Debug().Str("job_id", job.JobID).Int("attempt", next.Attempt).Msg("任务已重新投递")
	return storage.DeliveryAck
}
