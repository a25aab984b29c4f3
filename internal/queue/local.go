package queue

import (
	"context"
	"sync"
	"time"

	"resume-search/internal/logger"
	"resume-search/internal/types"

	"github.com/rs/zerolog"
)

// LocalQueue 进程内有界队列，固定数量的 worker 消费。进程退出时未处理的任务会丢失
type LocalQueue struct {
	jobs       chan *types.IngestJob
	handler    JobHandler
	workers    int
	retryDelay time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	log    zerolog.Logger
}

var _ Enqueuer = (*LocalQueue)(nil)

// LocalOption 本地队列选项
type LocalOption func(*LocalQueue)

// WithRetryDelay 重新投递前的等待时间
func WithRetryDelay(d time.Duration) LocalOption {
	return func(q *LocalQueue) {
		if d >= 0 {
			q.retryDelay = d
		}
	}
}

// NewLocalQueue 创建本地队列，需调用 Start 启动 worker
func NewLocalQueue(size, workers int, handler JobHandler, opts ...LocalOption) *LocalQueue {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 1
	}
	q := &LocalQueue{
		jobs:       make(chan *types.IngestJob, size),
		handler:    handler,
		workers:    workers,
		retryDelay: 5 * time.Second,
		log:        logger.Component("local_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start 启动 worker，ctx 透传给任务处理
func (q *LocalQueue) Start(ctx context.Context) {
	q.log.Warn().Int("workers", q.workers).Int("capacity", cap(q.jobs)).Msg("使用进程内队列，任务不持久化，进程重启会丢失未完成的任务")
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *LocalQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		if !q.handler(ctx, job) {
			continue
		}
		next := nextAttempt(job)
		q.log.Debug().Int("worker", id).Str("job_id", job.JobID).Int("attempt", next.Attempt).Msg("任务稍后重新投递")
		time.AfterFunc(q.retryDelay, func() {
			if err := q.Enqueue(context.Background(), next); err != nil {
				q.log.Error().Err(err).Str("job_id", next.JobID).Msg("重新投递失败，任务丢弃")
			}
		})
	}
}

// Enqueue 非阻塞投递，队列满时返回 ErrQueueFull
func (q *LocalQueue) Enqueue(_ context.Context, job *types.IngestJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len 排队中的任务数
func (q *LocalQueue) Len() int {
	return len(q.jobs)
}

// Close 停止接收新任务，等待已入队的任务处理完
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info().Msg("本地队列已关闭")
}
