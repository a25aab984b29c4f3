package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"resume-search/internal/config"
	"resume-search/internal/constants"
	"resume-search/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ObjectStorage 原始简历归档
type ObjectStorage interface {
	UploadResumeFile(ctx context.Context, jobID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	DownloadFile(ctx context.Context, objectKey string) ([]byte, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	log    zerolog.Logger
}

// NewMinIO 创建MinIO客户端，确保存储桶存在并按配置设置过期规则
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.BucketName
	if bucket == "" {
		bucket = "resume-originals"
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		bucket: bucket,
		log:    logger.Component("minio").With().Str("bucket", bucket).Logger(),
	}

	if err := m.ensureBucketExists(ctx, cfg.Location); err != nil {
		return nil, err
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			m.log.Warn().Err(err).Msg("设置生命周期规则失败")
		}
	}

	m.log.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, location string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", m.bucket, err)
	}
	m.log.Info().Msg("已创建存储桶")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:         ruleID,
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: constants.ResumeObjectPrefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(expiryDays)},
		},
	}
	if err := m.client.SetBucketLifecycle(ctx, m.bucket, lc); err != nil {
		return err
	}
	m.log.Info().Int("expire_days", expiryDays).Msg("已设置生命周期规则")
	return nil
}

// Ping 检查存储桶可访问
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

// ResumeObjectKey 原始简历在桶内的对象键
func ResumeObjectKey(jobID, fileExt string) string {
	return constants.ResumeObjectPrefix + path.Base(jobID) + strings.ToLower(fileExt)
}

// UploadResumeFile 归档原始简历，返回对象键
func (m *MinIO) UploadResumeFile(ctx context.Context, jobID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectKey := ResumeObjectKey(jobID, fileExt)
	info, err := m.client.PutObject(ctx, m.bucket, objectKey, reader, fileSize, minio.PutObjectOptions{
		ContentType: getContentType(fileExt),
	})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s 失败: %w", objectKey, err)
	}
	m.log.Debug().Str("object", objectKey).Int64("size", info.Size).Msg("原始简历已归档")
	return objectKey, nil
}

// DownloadFile 读取对象全部内容
func (m *MinIO) DownloadFile(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s 失败: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", objectKey, err)
	}
	return data, nil
}

// DeleteFile 删除对象
func (m *MinIO) DeleteFile(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	return nil
}

func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
