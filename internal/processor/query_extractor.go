package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-search/internal/logger"
	"resume-search/internal/tracing"
	"resume-search/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const querySystemPrompt = "You are an expert in analyzing user descriptions to extract resume-related information."

const queryUserPrompt = `Analyze the following user prompt and extract relevant resume details if present.
Extract the following fields:
- Skills
- Work_experience
- Education
- Certifications
- Projects
- Gpa

If a field is not mentioned, return it as an empty list. If no gpa, return string of 0.

User Prompt:
%s

Return the extracted information in JSON format without explanations or extra text.`

// LLMQueryExtractor 用对话模型把检索描述拆成各类别的关键词
type LLMQueryExtractor struct {
	chat model.BaseChatModel
	log  zerolog.Logger
}

var _ QueryExtractor = (*LLMQueryExtractor)(nil)

// NewLLMQueryExtractor chat 为空时调用返回 ErrMissingCredentials
func NewLLMQueryExtractor(chat model.BaseChatModel) *LLMQueryExtractor {
	return &LLMQueryExtractor{chat: chat, log: logger.Component("query_extractor")}
}

// ExtractQuery 只有模型调用失败才返回错误；回复不是JSON对象时返回空条件
func (q *LLMQueryExtractor) ExtractQuery(ctx context.Context, prompt string) (types.QueryFields, error) {
	ctx, span := tracer.Start(ctx, "LLMQueryExtractor.ExtractQuery")
	defer span.End()

	if q.chat == nil {
		return types.EmptyQueryFields(), fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredentials)
	}

	reply, err := q.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(querySystemPrompt),
		schema.UserMessage(fmt.Sprintf(queryUserPrompt, prompt)),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return types.EmptyQueryFields(), wrapProviderError("openai", err)
	}

	fields, ok := ParseQueryReply(reply.Content)
	if !ok {
		q.log.Debug().Str("reply", tracing.SafePrompt(reply.Content)).Msg("检索条件回复不是JSON对象，按空条件处理")
	}
	return fields, nil
}

// ParseQueryReply 仅当回复以 { 开头时解析。缺失类别为空列表，标量包装成单元素列表，GPA 缺省 "0"
func ParseQueryReply(content string) (types.QueryFields, bool) {
	fields := types.EmptyQueryFields()

	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") {
		return fields, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return fields, false
	}

	normalized := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		normalized[normalizeQueryKey(k)] = v
	}

	fields.Skills = decodeTermList(normalized["skills"])
	fields.WorkExperience = decodeTermList(normalized["work_experience"])
	fields.Education = decodeTermList(normalized["education"])
	fields.Certifications = decodeTermList(normalized["certifications"])
	fields.Projects = decodeTermList(normalized["projects"])

	var gpa types.FlexString
	if v, ok := normalized["gpa"]; ok && json.Unmarshal(v, &gpa) == nil && gpa != "" {
		fields.GPA = string(gpa)
	}
	return fields, true
}

// normalizeQueryKey "Work_experience"、"Work Experience" 都归一为 work_experience
func normalizeQueryKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), " ", "_")
}

func decodeTermList(raw json.RawMessage) []any {
	if len(raw) == 0 {
		return []any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return []any{}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
