package processor

import (
	"context"
	"errors"
	"fmt"

	"resume-search/internal/parser"
)

// 提取与检索流程的基础错误类型
var (
	ErrUnknownProvider    = errors.New("unknown extraction provider")
	ErrMissingCredentials = errors.New("provider credentials are not configured")
	ErrEmptyText          = errors.New("no text could be extracted from the document")
	ErrProviderCall       = errors.New("provider call failed")
	ErrMalformedReply     = errors.New("provider reply is not valid structured data")
	ErrValidation         = errors.New("extracted resume failed validation")
	ErrNoMatch            = errors.New("no suitable matches found")
)

// ResumeProcessError 带任务ID与操作名的错误
type ResumeProcessError struct {
	JobID   string
	Op      string
	BaseErr error
	Detail  string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 任务:%s): %s", e.BaseErr, e.Op, e.JobID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 任务:%s)", e.BaseErr, e.Op, e.JobID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newProcessError(jobID, op string, base error, detail string) error {
	return &ResumeProcessError{JobID: jobID, Op: op, BaseErr: base, Detail: detail}
}

// providerError 模型/OCR调用失败，保留原始错误以便判定是否可重试
type providerError struct {
	provider string
	cause    error
}

func (e *providerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProviderCall, e.provider, e.cause)
}

func (e *providerError) Unwrap() []error {
	return []error{ErrProviderCall, e.cause}
}

func wrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &providerError{provider: provider, cause: err}
}

// IsRetryable 仅对模型/OCR服务的瞬时故障返回 true，其余失败对该任务都是终态
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *providerError
	if !errors.As(err, &pe) {
		return false
	}
	return parser.IsTransientProviderError(pe.cause)
}
