package processor

import (
	"context"

	"resume-search/internal/storage"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"
)

// PDFTextExtractor 读取PDF文本层
type PDFTextExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error)
}

// OCRExtractor 通过OCR服务识别PDF内容
type OCRExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, error)
}

// ResumeExtractor 按提供方把PDF转换成结构化字段
type ResumeExtractor interface {
	Extract(ctx context.Context, filePath string, provider types.ModelType) (*types.ResumeFields, error)
}

// QueryExtractor 从自由文本检索描述中抽取匹配条件
type QueryExtractor interface {
	ExtractQuery(ctx context.Context, prompt string) (types.QueryFields, error)
}

// ResumeStore 简历记录的关系型存储
type ResumeStore interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResumeByID(ctx context.Context, id uint) (*models.Resume, error)
	GetResumesByIDs(ctx context.Context, ids []uint) ([]*models.Resume, error)
	DeleteResume(ctx context.Context, id uint) error
}

// VectorIndex 简历向量索引，每条记录最多一个点
type VectorIndex interface {
	UpsertResume(ctx context.Context, resumeID uint, vector []float64, text string, modelType string) (string, error)
	SearchResumes(ctx context.Context, vector []float64, limit int) ([]storage.ScoredResume, error)
}

// JobStatusStore 可轮询的任务状态
type JobStatusStore interface {
	SetJobStatus(ctx context.Context, status *types.JobStatus) error
	GetJobStatus(ctx context.Context, jobID string) (*types.JobStatus, error)
}

// ArchiveFetcher 读取上传时归档的原始文件
type ArchiveFetcher interface {
	DownloadFile(ctx context.Context, objectKey string) ([]byte, error)
}

var (
	_ ResumeStore    = (*storage.MySQL)(nil)
	_ VectorIndex    = (*storage.Qdrant)(nil)
	_ JobStatusStore = (*storage.Redis)(nil)
	_ ArchiveFetcher = (*storage.MinIO)(nil)
)
