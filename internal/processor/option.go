package processor

import (
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Components 聚合所有功能组件依赖，由 main 构造一次后注入
type Components struct {
	Extractor      ResumeExtractor    // 结构化抽取
	QueryExtractor QueryExtractor     // 检索条件抽取
	Embedder       embedding.Embedder // 文本向量化

	Store       ResumeStore    // 关系型存储
	VectorIndex VectorIndex    // 向量索引
	Status      JobStatusStore // 任务状态，可为空
	Archive     ArchiveFetcher // 原始文件归档，可为空
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	MaxAttempts int           // 单个任务最多执行次数
	JobTimeout  time.Duration // 单次执行超时
	SearchTopK  int           // 向量召回数量
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// DefaultSettings 默认设置
func DefaultSettings() *Settings {
	return &Settings{
		MaxAttempts: 3,
		JobTimeout:  5 * time.Minute,
		SearchTopK:  3,
	}
}

// NewComponents 按选项组装组件
func NewComponents(opts ...ComponentOpt) *Components {
	c := &Components{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ----- 组件选项 -----

// WithcompExtractor 设置简历抽取器
func WithcompExtractor(extractor ResumeExtractor) ComponentOpt {
	return func(c *Components) {
		c.Extractor = extractor
	}
}

// WithcompQueryextractor 设置检索条件抽取器
func WithcompQueryextractor(extractor QueryExtractor) ComponentOpt {
	return func(c *Components) {
		c.QueryExtractor = extractor
	}
}

// WithcompEmbedder 设置向量化组件
func WithcompEmbedder(embedder embedding.Embedder) ComponentOpt {
	return func(c *Components) {
		c.Embedder = embedder
	}
}

// WithcompStore 设置简历存储
func WithcompStore(store ResumeStore) ComponentOpt {
	return func(c *Components) {
		c.Store = store
	}
}

// WithcompVectorindex 设置向量索引
func WithcompVectorindex(index VectorIndex) ComponentOpt {
	return func(c *Components) {
		c.VectorIndex = index
	}
}

// WithcompStatus 设置任务状态存储
func WithcompStatus(status JobStatusStore) ComponentOpt {
	return func(c *Components) {
		c.Status = status
	}
}

// WithcompArchive 设置原始文件归档，任务优先从归档读取文件
func WithcompArchive(archive ArchiveFetcher) ComponentOpt {
	return func(c *Components) {
		c.Archive = archive
	}
}

// ----- 设置选项 -----

// WithsetMaxattempts 设置最大执行次数
func WithsetMaxattempts(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.MaxAttempts = n
		}
	}
}

// WithsetJobtimeout 设置单次执行超时
func WithsetJobtimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.JobTimeout = d
		}
	}
}

// WithsetSearchtopk 设置向量召回数量
func WithsetSearchtopk(k int) SettingOpt {
	return func(s *Settings) {
		if k > 0 {
			s.SearchTopK = k
		}
	}
}

func applySettings(set *Settings, opts ...SettingOpt) *Settings {
	merged := DefaultSettings()
	if set != nil {
		*merged = *set
	}
	for _, opt := range opts {
		opt(merged)
	}
	if merged.MaxAttempts <= 0 {
		merged.MaxAttempts = 1
	}
	if merged.SearchTopK <= 0 {
		merged.SearchTopK = 3
	}
	return merged
}
