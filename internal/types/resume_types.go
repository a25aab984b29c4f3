package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ModelType 结构化抽取所用的提供方
type ModelType string

const (
	// ModelTypeGPTFitz PDF文本层 + OpenAI 对话模型
	ModelTypeGPTFitz ModelType = "gpt_fitz"
	// ModelTypeMistral Mistral OCR + Mistral 对话模型
	ModelTypeMistral ModelType = "mistral"
)

// ParseModelType 校验并返回提供方枚举
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(strings.TrimSpace(s)) {
	case ModelTypeGPTFitz:
		return ModelTypeGPTFitz, nil
	case ModelTypeMistral:
		return ModelTypeMistral, nil
	}
	return "", fmt.Errorf("invalid model type: %q, choose 'gpt_fitz' or 'mistral'", s)
}

// FlexString 兼容模型返回的字符串、数字或 null
type FlexString string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

// ResumeFields 抽取模型返回的固定字段集合，嵌套结构保留原始JSON
type ResumeFields struct {
	Name           FlexString      `json:"Name"`
	Email          FlexString      `json:"Email"`
	PhoneNumber    FlexString      `json:"Phone Number"`
	Skills         json.RawMessage `json:"Skills"`
	WorkExperience json.RawMessage `json:"Work Experience"`
	Education      json.RawMessage `json:"Education"`
	Certifications json.RawMessage `json:"Certifications"`
	Projects       json.RawMessage `json:"Projects"`
	GPA            FlexString      `json:"Gpa"`
}

// QueryFields 从检索描述中抽取的条件，缺失字段为空列表，GPA 缺省为 "0"
type QueryFields struct {
	Skills         []any  `json:"skills"`
	WorkExperience []any  `json:"work_experience"`
	Education      []any  `json:"education"`
	Certifications []any  `json:"certifications"`
	Projects       []any  `json:"projects"`
	GPA            string `json:"gpa"`
}

// EmptyQueryFields 返回所有条件为空的抽取结果
func EmptyQueryFields() QueryFields {
	return QueryFields{
		Skills:         []any{},
		WorkExperience: []any{},
		Education:      []any{},
		Certifications: []any{},
		Projects:       []any{},
		GPA:            "0",
	}
}

// IngestJob 入库任务消息
type IngestJob struct {
	JobID     string    `json:"job_id"`
	FilePath  string    `json:"file_path"`
	FileName  string    `json:"file_name"`
	ModelType ModelType `json:"model_type"`
	ObjectKey string    `json:"object_key,omitempty"`
	FileMD5   string    `json:"file_md5,omitempty"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// JobState 入库任务状态
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// JobStatus 可轮询的任务状态
type JobStatus struct {
	JobID     string    `json:"job_id"`
	Status    JobState  `json:"status"`
	ResumeID  uint      `json:"resume_id,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
