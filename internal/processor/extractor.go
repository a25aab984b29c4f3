package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-search/internal/logger"
	"resume-search/internal/parser"
	"resume-search/internal/tracing"
	"resume-search/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("resume-search/processor")

const extractionSystemPrompt = "You extract structured information from resumes and return JSON."

const extractionUserPrompt = `Extract the following details from this resume and return JSON:
- Name
- Email
- Phone Number
- Skills
- Work Experience (Company, Role, Duration)
- Education (Degree, Institution, Year)
- Certifications
- Projects
- Gpa

Resume Text:
%s`

// Extractor 按提供方分派：gpt_fitz 读文本层后交给 OpenAI，mistral 走 OCR 后交给 Mistral。
// 任一依赖为空表示对应凭证未配置，调用时返回 ErrMissingCredentials
type Extractor struct {
	pdf         PDFTextExtractor
	openaiChat  model.BaseChatModel
	ocr         OCRExtractor
	mistralChat model.BaseChatModel
	log         zerolog.Logger
}

var _ ResumeExtractor = (*Extractor)(nil)

// ExtractorOption 抽取器选项
type ExtractorOption func(*Extractor)

// WithGPTFitz 配置 gpt_fitz 提供方
func WithGPTFitz(pdf PDFTextExtractor, chat model.BaseChatModel) ExtractorOption {
	return func(e *Extractor) {
		e.pdf = pdf
		e.openaiChat = chat
	}
}

// WithMistral 配置 mistral 提供方
func WithMistral(ocr OCRExtractor, chat model.BaseChatModel) ExtractorOption {
	return func(e *Extractor) {
		e.ocr = ocr
		e.mistralChat = chat
	}
}

// NewExtractor 创建抽取器
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{log: logger.Component("extractor")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 抽取简历字段，所有失败都包装为 ResumeProcessError{Op:"extract"}
func (e *Extractor) Extract(ctx context.Context, filePath string, provider types.ModelType) (*types.ResumeFields, error) {
	ctx, span := tracer.Start(ctx, "Extractor.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("model_type", string(provider)))

	jobID := jobIDFromContext(ctx)
	var (
		fields *types.ResumeFields
		err    error
	)
	switch provider {
	case types.ModelTypeGPTFitz:
		fields, err = e.extractGPTFitz(ctx, filePath)
	case types.ModelTypeMistral:
		fields, err = e.extractMistral(ctx, filePath)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		e.log.Warn().Err(err).Str("job_id", jobID).Str("model_type", string(provider)).Msg("简历抽取失败")
		return nil, newProcessError(jobID, "extract", err, "")
	}
	return fields, nil
}

func (e *Extractor) extractGPTFitz(ctx context.Context, filePath string) (*types.ResumeFields, error) {
	if e.pdf == nil || e.openaiChat == nil {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredentials)
	}

	text, _, err := e.pdf.ExtractFromFile(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyText, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	reply, err := e.openaiChat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		schema.UserMessage(fmt.Sprintf(extractionUserPrompt, text)),
	})
	if err != nil {
		return nil, wrapProviderError("openai", err)
	}
	return parseResumeReply(reply.Content)
}

func (e *Extractor) extractMistral(ctx context.Context, filePath string) (*types.ResumeFields, error) {
	if e.ocr == nil || e.mistralChat == nil {
		return nil, fmt.Errorf("%w: MISTRAL_API_KEY", ErrMissingCredentials)
	}

	text, err := e.ocr.ExtractFromFile(ctx, filePath)
	if err != nil {
		return nil, wrapProviderError("mistral-ocr", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	reply, err := e.mistralChat.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(extractionUserPrompt, text)),
	})
	if err != nil {
		return nil, wrapProviderError("mistral", err)
	}
	return parseResumeReply(reply.Content)
}

// parseResumeReply 去掉代码块围栏后严格解码，未知字段不报错
func parseResumeReply(content string) (*types.ResumeFields, error) {
	raw := parser.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedReply)
	}

	var fields types.ResumeFields
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &fields, nil
}

type jobIDKey struct{}

// ContextWithJobID 把任务ID放进 context，供抽取等下游步骤记日志
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

func jobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(jobIDKey{}).(string); ok {
		return v
	}
	return ""
}
