// Package outbox 把 outbox 表中的入库任务转投到 RabbitMQ
package outbox

import (
	"context"
	"time"

	"resume-search/internal/logger"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 2 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 消息发布能力，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// JobStatusWriter 任务状态写入，消息放弃投递时把任务标记为失败
type JobStatusWriter interface {
	SetJobStatus(ctx context.Context, status *types.JobStatus) error
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	status          JobStatusWriter
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	tracer          trace.Tracer
	done            chan struct{}
}

// Option 中继选项
type Option func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置单批处理数量
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithJobStatus 设置任务状态存储
func WithJobStatus(status JobStatusWriter) Option {
	return func(r *MessageRelay) {
		r.status = status
	}
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             logger.Component("outbox_relay"),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		tracer:          otel.Tracer("resume-search/outbox"),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台轮询，ctx 取消后退出。Done 返回的 channel 在退出后关闭
func (r *MessageRelay) Start(ctx context.Context) {
	r.log.Info().Dur("interval", r.pollingInterval).Int("batch_size", r.batchSize).Msg("outbox中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.log.Info().Msg("outbox中继已停止")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					r.log.Error().Err(err).Msg("处理待投递消息失败")
				}
			}
		}
	}()
}

// Done 中继退出信号
func (r *MessageRelay) Done() <-chan struct{} {
	return r.done
}

// ProcessPending 取一批待投递消息并发布，返回本批处理的条数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 让多个实例可以并行中继
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}

	// 空轮询不建span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	// 更新失败时整批回滚，下次轮询重新拾取
	failed, err := r.relayBatch(ctx, messages, func(msg *models.OutboxMessage) error {
		return tx.Save(msg).Error
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}

	r.markJobsFailed(ctx, failed)
	return len(messages), nil
}

// relayBatch 逐条发布并通过 save 持久化状态，返回本批转为 FAILED 的消息
func (r *MessageRelay) relayBatch(ctx context.Context, messages []models.OutboxMessage, save func(*models.OutboxMessage) error) ([]*models.OutboxMessage, error) {
	var failed []*models.OutboxMessage
	for i := range messages {
		msg := &messages[i]
		r.publishOne(ctx, msg)
		if err := save(msg); err != nil {
			return nil, err
		}
		if msg.Status == models.OutboxStatusFailed {
			failed = append(failed, msg)
		}
	}
	return failed, nil
}

// publishOne 发布单条消息并更新其状态字段，不落库
func (r *MessageRelay) publishOne(ctx context.Context, msg *models.OutboxMessage) {
	err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
	if err == nil {
		now := time.Now()
		msg.Status = models.OutboxStatusSent
		msg.ProcessedAt = &now
		msg.ErrorMessage = ""
		return
	}

	msg.RetryCount++
	msg.ErrorMessage = err.Error()
	if msg.RetryCount >= maxRetryCount {
		msg.Status = models.OutboxStatusFailed
	}
	r.log.Warn().Err(err).
		Uint64("message_id", msg.ID).
		Str("job_id", msg.AggregateID).
		Int("retry", msg.RetryCount).
		Msg("发布outbox消息失败")
}

// markJobsFailed 放弃投递的任务不会再被消费，状态直接置为失败
func (r *MessageRelay) markJobsFailed(ctx context.Context, failed []*models.OutboxMessage) {
	for _, msg := range failed {
		log := r.log.With().Uint64("message_id", msg.ID).Str("job_id", msg.AggregateID).Logger()
		log.Error().Int("retry", msg.RetryCount).Str("error", msg.ErrorMessage).Msg("outbox消息重试耗尽，放弃投递")
		if r.status == nil {
			continue
		}
		err := r.status.SetJobStatus(context.WithoutCancel(ctx), &types.JobStatus{
			JobID:  msg.AggregateID,
			Status: types.JobStateFailed,
			Error:  "failed to publish ingest job: " + msg.ErrorMessage,
		})
		if err != nil {
			log.Warn().Err(err).Msg("更新任务状态失败")
		}
	}
}
