package storage

import "errors"

var (
	// ErrResumeNotFound 简历记录不存在
	ErrResumeNotFound = errors.New("resume not found")
	// ErrDuplicateEmail 邮箱已存在
	ErrDuplicateEmail = errors.New("resume with this email already exists")
	// ErrPointNotFound 向量库中没有对应的点
	ErrPointNotFound = errors.New("vector point not found")
)

// ErrJobStatusNotFound 任务状态不存在或已过期
var ErrJobStatusNotFound = errors.New("job status not found")
