package constants

import "time"

// Redis Key 统一命名: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityJobStatus 入库任务状态实体
	EntityJobStatus = "job_status"
	// EntityMD5ToJob 上传文件MD5到最近任务ID的映射实体
	EntityMD5ToJob = "md5_to_job"

	// KeyIngestJobStatus 入库任务状态 (STRING, JSON)
	// 格式: app:resume:job_status:{jobID}
	KeyIngestJobStatus = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityJobStatus + ":%s"

	// KeyFileMD5ToJob 同一文件与提供方最近一次上传的任务ID (STRING)
	// 格式: app:file:md5_to_job:{md5}:{model_type}
	KeyFileMD5ToJob = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToJob + ":%s:%s"
)

const (
	// DefaultJobStatusTTL 任务状态保留时长
	DefaultJobStatusTTL = 72 * time.Hour
	// DefaultFileDedupTTL 上传记录保留时长
	DefaultFileDedupTTL = 24 * time.Hour
)
