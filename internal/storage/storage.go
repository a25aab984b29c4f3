package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-search/internal/config"
	"resume-search/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖。MySQL 与 Qdrant 必须可用，其余组件可选
type Storage struct {
	// 关系型数据库
	MySQL *MySQL

	// 向量数据库
	Qdrant *Qdrant

	// 任务状态与上传去重
	Redis *Redis

	// 持久化任务队列
	RabbitMQ *RabbitMQ

	// 原始简历归档
	MinIO *MinIO
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	s.Qdrant, err = NewQdrant(ctx, &cfg.Qdrant)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}

	var optionalErrors []string

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			optionalErrors = append(optionalErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		logger.Info().Msg("Redis未配置, 任务状态与上传去重不可用")
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = s.RabbitMQ.EnsureIngestTopology()
			if err != nil {
				s.RabbitMQ.Close()
				s.RabbitMQ = nil
			}
		}
		if err != nil {
			optionalErrors = append(optionalErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	} else {
		logger.Info().Msg("RabbitMQ未配置, 使用进程内队列")
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			optionalErrors = append(optionalErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if len(optionalErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(optionalErrors, "; ")).Msg("以下可选存储组件初始化失败")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}

// Health 逐个检查已初始化组件，返回 组件名 -> 状态
func (s *Storage) Health(ctx context.Context) map[string]string {
	checks := map[string]func(context.Context) error{}
	if s.MySQL != nil {
		checks["mysql"] = s.MySQL.Ping
	}
	if s.Qdrant != nil {
		checks["qdrant"] = s.Qdrant.Ping
	}
	if s.Redis != nil {
		checks["redis"] = s.Redis.Ping
	}
	if s.RabbitMQ != nil {
		checks["rabbitmq"] = s.RabbitMQ.Ping
	}
	if s.MinIO != nil {
		checks["minio"] = s.MinIO.Ping
	}

	result := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(ctx); err != nil {
			result[name] = "error: " + err.Error()
			continue
		}
		result[name] = "ok"
	}
	return result
}
