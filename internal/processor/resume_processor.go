package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-search/internal/logger"
	"resume-search/internal/storage"
	"resume-search/internal/storage/models"
	"resume-search/internal/tracing"
	"resume-search/internal/types"
	"resume-search/pkg/utils"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

// ResumeProcessor 入库流水线：抽取 → 落库 → 摘要 → 向量化 → 写入索引。
// 向量化或写索引失败时删除刚写入的记录，保证库里不存在没有向量的记录
type ResumeProcessor struct {
	comp *Components
	set  *Settings
	log  zerolog.Logger
}

// NewResumeProcessor 创建入库流水线，Status 与 Archive 可为空
func NewResumeProcessor(comp *Components, set *Settings, opts ...SettingOpt) (*ResumeProcessor, error) {
	if comp == nil {
		return nil, errors.New("components cannot be nil")
	}
	switch {
	case comp.Extractor == nil:
		return nil, errors.New("extractor is not initialized")
	case comp.Store == nil:
		return nil, errors.New("resume store is not initialized")
	case comp.Embedder == nil:
		return nil, errors.New("embedder is not initialized")
	case comp.VectorIndex == nil:
		return nil, errors.New("vector index is not initialized")
	}
	return &ResumeProcessor{
		comp: comp,
		set:  applySettings(set, opts...),
		log:  logger.Component("resume_processor"),
	}, nil
}

// Settings 生效的设置
func (rp *ResumeProcessor) Settings() Settings {
	return *rp.set
}

// Process 执行一次完整入库，成功返回记录ID
func (rp *ResumeProcessor) Process(ctx context.Context, job *types.IngestJob) (uint, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.JobID),
		attribute.String("model_type", string(job.ModelType)),
		attribute.Int("attempt", job.Attempt),
	)
	ctx = ContextWithJobID(ctx, job.JobID)
	log := rp.log.With().Str("job_id", job.JobID).Str("model_type", string(job.ModelType)).Logger()

	sourcePath, cleanup := rp.sourceFile(ctx, log, job)
	defer cleanup()

	fields, err := rp.comp.Extractor.Extract(ctx, sourcePath, job.ModelType)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return 0, err
	}

	resume, err := BuildResumeRecord(fields, job.ModelType)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return 0, newProcessError(job.JobID, "validate", err, "")
	}
	resume.SourceObject = job.ObjectKey

	if err := rp.comp.Store.CreateResume(ctx, resume); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, newProcessError(job.JobID, "persist", err, "")
	}
	log = log.With().Uint("resume_id", resume.ID).Logger()
	span.SetAttributes(attribute.Int64("resume_id", int64(resume.ID)))
	log.Debug().Msg("简历记录已写入")

	text := FormatResumeText(resume)

	vectors, err := rp.comp.Embedder.EmbedStrings(ctx, []string{text})
	if err == nil && (len(vectors) == 0 || len(vectors[0]) == 0) {
		err = errors.New("embedder returned no vector")
	}
	if err != nil {
		err = wrapProviderError("embedding", err)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		rp.compensate(ctx, log, resume.ID)
		return 0, newProcessError(job.JobID, "embed", err, "")
	}

	pointID, err := rp.comp.VectorIndex.UpsertResume(ctx, resume.ID, vectors[0], text, string(job.ModelType))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		rp.compensate(ctx, log, resume.ID)
		return 0, newProcessError(job.JobID, "upsert", err, "")
	}

	log.Info().Str("point_id", pointID).Msg("简历入库完成")
	return resume.ID, nil
}

// sourceFile 返回本次抽取读取的文件。上传目录按原文件名保存，同名文件会被后来的上传覆盖，
// 因此有归档时优先把归档对象落到任务独占的临时目录；归档不可用时退回上传目录
func (rp *ResumeProcessor) sourceFile(ctx context.Context, log zerolog.Logger, job *types.IngestJob) (string, func()) {
	noop := func() {}
	if rp.comp.Archive == nil || job.ObjectKey == "" {
		return job.FilePath, noop
	}
	data, err := rp.comp.Archive.DownloadFile(ctx, job.ObjectKey)
	if err != nil {
		log.Warn().Err(err).Str("object_key", job.ObjectKey).Msg("读取归档文件失败，改用上传目录")
		return job.FilePath, noop
	}
	dir, err := os.MkdirTemp("", "resume-"+job.JobID+"-")
	if err != nil {
		log.Warn().Err(err).Msg("创建临时目录失败，改用上传目录")
		return job.FilePath, noop
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("清理临时目录失败")
		}
	}
	path := filepath.Join(dir, utils.SafeFileName(job.FileName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		log.Warn().Err(err).Msg("写入临时文件失败，改用上传目录")
		return job.FilePath, noop
	}
	return path, cleanup
}

// compensate 删除没有向量的记录，使用脱离取消的 context，保证超时后仍能清理
func (rp *ResumeProcessor) compensate(ctx context.Context, log zerolog.Logger, resumeID uint) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := rp.comp.Store.DeleteResume(cleanupCtx, resumeID); err != nil {
		if errors.Is(err, storage.ErrResumeNotFound) {
			log.Warn().Msg("补偿删除时记录已不存在")
			return
		}
		log.Error().Err(err).Msg("补偿删除简历记录失败")
		return
	}
	log.Warn().Msg("向量写入失败，已删除简历记录")
}

// HandleJob 执行任务并维护状态，返回是否需要以 Attempt+1 重新投递
func (rp *ResumeProcessor) HandleJob(ctx context.Context, job *types.IngestJob) (retry bool) {
	log := rp.log.With().Str("job_id", job.JobID).Int("attempt", job.Attempt).Logger()
	rp.updateStatus(ctx, log, &types.JobStatus{
		JobID:   job.JobID,
		Status:  types.JobStateProcessing,
		Attempt: job.Attempt,
	})

	runCtx := ctx
	if rp.set.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, rp.set.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	resumeID, err := rp.Process(runCtx, job)
	if err == nil {
		rp.updateStatus(ctx, log, &types.JobStatus{
			JobID:    job.JobID,
			Status:   types.JobStateCompleted,
			ResumeID: resumeID,
			Attempt:  job.Attempt,
		})
		log.Info().Uint("resume_id", resumeID).Dur("elapsed", time.Since(start)).Msg("任务完成")
		return false
	}

	if IsRetryable(err) && job.Attempt+1 < rp.set.MaxAttempts && ctx.Err() == nil {
		log.Warn().Err(err).Int("max_attempts", rp.set.MaxAttempts).Msg("任务失败，将重新投递")
		rp.updateStatus(ctx, log, &types.JobStatus{
			JobID:   job.JobID,
			Status:  types.JobStateQueued,
			Attempt: job.Attempt + 1,
			Error:   err.Error(),
		})
		return true
	}

	log.Error().Err(err).Str("op", opOf(err)).Dur("elapsed", time.Since(start)).Msg("任务失败")
	rp.updateStatus(ctx, log, &types.JobStatus{
		JobID:   job.JobID,
		Status:  types.JobStateFailed,
		Attempt: job.Attempt,
		Error:   err.Error(),
	})
	return false
}

func (rp *ResumeProcessor) updateStatus(ctx context.Context, log zerolog.Logger, status *types.JobStatus) {
	if rp.comp.Status == nil {
		return
	}
	status.UpdatedAt = time.Now()
	if err := rp.comp.Status.SetJobStatus(context.WithoutCancel(ctx), status); err != nil {
		log.Warn().Err(err).Str("status", string(status.Status)).Msg("更新任务状态失败")
	}
}

func opOf(err error) string {
	var pe *ResumeProcessError
	if errors.As(err, &pe) {
		return pe.Op
	}
	return ""
}

// BuildResumeRecord 校验必填字段并转换为数据库记录，嵌套字段原样保存
func BuildResumeRecord(fields *types.ResumeFields, modelType types.ModelType) (*models.Resume, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: empty extraction result", ErrValidation)
	}

	var missing []string
	name := strings.TrimSpace(string(fields.Name))
	email := strings.TrimSpace(string(fields.Email))
	if name == "" {
		missing = append(missing, "Name")
	}
	if email == "" {
		missing = append(missing, "Email")
	}
	if isAbsent(fields.Skills) {
		missing = append(missing, "Skills")
	}
	if isAbsent(fields.Education) {
		missing = append(missing, "Education")
	}
	if isAbsent(fields.Projects) {
		missing = append(missing, "Projects")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	return &models.Resume{
		Name:           name,
		Email:          email,
		PhoneNumber:    optionalString(string(fields.PhoneNumber)),
		Skills:         datatypes.JSON(fields.Skills),
		WorkExperience: optionalJSON(fields.WorkExperience),
		Education:      datatypes.JSON(fields.Education),
		Certifications: optionalJSON(fields.Certifications),
		Projects:       datatypes.JSON(fields.Projects),
		GPA:            optionalString(string(fields.GPA)),
		ModelType:      string(modelType),
	}, nil
}

func isAbsent(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func optionalJSON(raw []byte) datatypes.JSON {
	if isAbsent(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
