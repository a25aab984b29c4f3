// Package queue 入库任务的投递与消费：RabbitMQ（可经 outbox 表）或进程内队列
package queue

import (
	"context"
	"errors"

	"resume-search/internal/types"
)

var (
	// ErrQueueFull 本地队列已满
	ErrQueueFull = errors.New("ingest queue is full")
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("ingest queue is closed")
)

// Enqueuer 投递入库任务
type Enqueuer interface {
	Enqueue(ctx context.Context, job *types.IngestJob) error
}

// JobHandler 执行一个任务，返回是否需要以 Attempt+1 重新投递
type JobHandler func(ctx context.Context, job *types.IngestJob) (retry bool)

func nextAttempt(job *types.IngestJob) *types.IngestJob {
	next := *job
	next.Attempt++
	return &next
}
