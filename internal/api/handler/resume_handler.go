package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"resume-search/internal/constants"
	"resume-search/internal/logger"
	"resume-search/internal/processor"
	"resume-search/internal/queue"
	"resume-search/internal/storage"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"
	"resume-search/pkg/utils"

	"github.com/cloudwego/hertz/pkg/app"
	hertzutils "github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// ResumeReader 按ID读取简历
type ResumeReader interface {
	GetResumeByID(ctx context.Context, id uint) (*models.Resume, error)
}

// UploadRecorder 记录同一文件与提供方最近一次上传的任务ID
type UploadRecorder interface {
	RecordUpload(ctx context.Context, md5Hex, modelType, jobID string) (string, error)
}

// FileArchiver 原始文件归档
type FileArchiver interface {
	UploadResumeFile(ctx context.Context, jobID, fileExt string, reader io.Reader, fileSize int64) (string, error)
}

var (
	_ ResumeReader   = (*storage.MySQL)(nil)
	_ UploadRecorder = (*storage.Redis)(nil)
	_ FileArchiver   = (*storage.MinIO)(nil)
)

// ResumeHandler 简历上传、查询与任务状态
type ResumeHandler struct {
	store     ResumeReader
	queue     queue.Enqueuer
	status    processor.JobStatusStore
	uploads   UploadRecorder
	archiver  FileArchiver
	uploadDir string
	maxBytes  int64
}

// ResumeHandlerOption 可选依赖
type ResumeHandlerOption func(*ResumeHandler)

// WithJobStatus 任务状态存储，未设置时状态接口返回 503
func WithJobStatus(status processor.JobStatusStore) ResumeHandlerOption {
	return func(h *ResumeHandler) { h.status = status }
}

// WithUploadRecorder 上传记录，重复上传时在响应中附带此前的任务ID
func WithUploadRecorder(r UploadRecorder) ResumeHandlerOption {
	return func(h *ResumeHandler) { h.uploads = r }
}

// WithArchiver 原始文件归档
func WithArchiver(a FileArchiver) ResumeHandlerOption {
	return func(h *ResumeHandler) { h.archiver = a }
}

// WithMaxUploadMB 单个文件大小上限
func WithMaxUploadMB(mb int) ResumeHandlerOption {
	return func(h *ResumeHandler) {
		if mb > 0 {
			h.maxBytes = int64(mb) << 20
		}
	}
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(store ResumeReader, q queue.Enqueuer, uploadDir string, opts ...ResumeHandlerOption) *ResumeHandler {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	h := &ResumeHandler{store: store, queue: q, uploadDir: uploadDir}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// UploadResponse 上传受理响应
type UploadResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	JobID         string `json:"job_id"`
	ExistingJobID string `json:"existing_job_id,omitempty"`
}

// Upload POST /api/v1/resume/
func (h *ResumeHandler) Upload(c context.Context, ctx *app.RequestContext) {
	modelType, err := types.ParseModelType(string(ctx.FormValue("model_type")))
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, hertzutils.H{"error": err.Error()})
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, hertzutils.H{"error": "file is required"})
		return
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		ctx.JSON(consts.StatusRequestEntityTooLarge, hertzutils.H{"error": fmt.Sprintf("file exceeds %d MB", h.maxBytes>>20)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": "failed to read uploaded file"})
		return
	}

	resp, err := h.SubmitResume(c, fileHeader.Filename, data, modelType)
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		ctx.JSON(consts.StatusServiceUnavailable, hertzutils.H{"error": err.Error()})
	case err != nil:
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
	default:
		ctx.JSON(consts.StatusOK, resp)
	}
}

// SubmitResume 落盘、归档并投递入库任务，不等待抽取完成
func (h *ResumeHandler) SubmitResume(ctx context.Context, filename string, data []byte, modelType types.ModelType) (*UploadResponse, error) {
	jobUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成任务ID失败: %w", err)
	}
	jobID := jobUUID.String()
	log := logger.Ctx(ctx).With().Str("job_id", jobID).Str("filename", filename).Str("model_type", string(modelType)).Logger()

	fileMD5 := utils.CalculateMD5(data)

	filePath, err := h.saveUpload(filename, data)
	if err != nil {
		return nil, err
	}

	job := &types.IngestJob{
		JobID:     jobID,
		FilePath:  filePath,
		FileName:  filename,
		ModelType: modelType,
		FileMD5:   fileMD5,
		CreatedAt: time.Now().UTC(),
	}

	if h.archiver != nil {
		key, err := h.archiver.UploadResumeFile(ctx, jobID, utils.FileExt(filename), bytes.NewReader(data), int64(len(data)))
		if err != nil {
			log.Warn().Err(err).Msg("原始简历归档失败")
		} else {
			job.ObjectKey = key
		}
	}

	h.setStatus(ctx, &types.JobStatus{JobID: jobID, Status: types.JobStateQueued})

	if err := h.queue.Enqueue(ctx, job); err != nil {
		h.setStatus(ctx, &types.JobStatus{JobID: jobID, Status: types.JobStateFailed, Error: err.Error()})
		log.Error().Err(err).Msg("投递入库任务失败")
		return nil, fmt.Errorf("failed to enqueue resume: %w", err)
	}

	resp := &UploadResponse{
		Status:  "processing",
		Message: constants.MessageProcessing,
		JobID:   jobID,
	}
	if h.uploads != nil {
		previous, err := h.uploads.RecordUpload(ctx, fileMD5, string(modelType), jobID)
		if err != nil {
			log.Warn().Err(err).Str("md5", fileMD5).Msg("登记上传记录失败")
		} else if previous != "" {
			log.Info().Str("md5", fileMD5).Str("existing_job_id", previous).Msg("同一文件此前已上传过")
			resp.ExistingJobID = previous
		}
	}

	log.Info().Str("path", filePath).Msg("简历已受理")
	return resp, nil
}

func (h *ResumeHandler) saveUpload(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("创建上传目录失败: %w", err)
	}
	path := filepath.Join(h.uploadDir, utils.SafeFileName(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}
	return path, nil
}

func (h *ResumeHandler) setStatus(ctx context.Context, status *types.JobStatus) {
	if h.status == nil {
		return
	}
	if err := h.status.SetJobStatus(ctx, status); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("job_id", status.JobID).Str("status", string(status.Status)).Msg("写入任务状态失败")
	}
}

// GetResume GET /api/v1/resume/:id
func (h *ResumeHandler) GetResume(c context.Context, ctx *app.RequestContext) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctx.JSON(consts.StatusNotFound, hertzutils.H{"detail": "Resume not found"})
		return
	}

	resume, err := h.store.GetResumeByID(c, uint(id))
	if errors.Is(err, storage.ErrResumeNotFound) {
		ctx.JSON(consts.StatusNotFound, hertzutils.H{"detail": "Resume not found"})
		return
	}
	if err != nil {
		logger.Ctx(c).Error().Err(err).Uint64("resume_id", id).Msg("读取简历失败")
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, resume)
}

// GetJobStatus GET /api/v1/resume/status/:job_id
func (h *ResumeHandler) GetJobStatus(c context.Context, ctx *app.RequestContext) {
	if h.status == nil {
		ctx.JSON(consts.StatusServiceUnavailable, hertzutils.H{"error": "job status tracking is not enabled"})
		return
	}
	jobID := ctx.Param("job_id")
	status, err := h.status.GetJobStatus(c, jobID)
	if errors.Is(err, storage.ErrJobStatusNotFound) {
		ctx.JSON(consts.StatusNotFound, hertzutils.H{"detail": "Job not found"})
		return
	}
	if err != nil {
		logger.Ctx(c).Error().Err(err).Str("job_id", jobID).Msg("读取任务状态失败")
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, status)
}
