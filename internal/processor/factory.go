package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-search/internal/config"
	"resume-search/internal/logger"
	"resume-search/internal/parser"
	"resume-search/internal/ratelimit"

	"github.com/cloudwego/eino/components/model"
)

const llmRetryWait = 2 * time.Second

// BuildExtractor 按配置组装两个提供方。缺少 API Key 的提供方保持未配置，调用时才报错
func BuildExtractor(ctx context.Context, cfg *config.Config) (*Extractor, error) {
	var opts []ExtractorOption

	pdf, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithParseTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second))
	if err != nil {
		return nil, err
	}

	temperature := float32(0)
	openaiChat, err := buildChatModel(parser.OpenAIChatConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.ExtractionModel,
		Temperature: &temperature,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	}, cfg.OpenAI.RequestsPerMinute, cfg.OpenAI.MaxRetries)
	switch {
	case err == nil:
		opts = append(opts, WithGPTFitz(pdf, openaiChat))
	case errors.Is(err, parser.ErrMissingAPIKey):
		logger.Warn().Msg("未配置 OPENAI_API_KEY，gpt_fitz 提供方不可用")
	default:
		return nil, fmt.Errorf("初始化 OpenAI 对话模型失败: %w", err)
	}

	mistralTimeout := time.Duration(cfg.Mistral.TimeoutSeconds) * time.Second
	ocr, err := parser.NewMistralOCR(parser.MistralOCRConfig{
		APIKey:  cfg.Mistral.APIKey,
		BaseURL: cfg.Mistral.BaseURL,
		Model:   cfg.Mistral.OCRModel,
		Timeout: mistralTimeout,
	})
	switch {
	case err == nil:
		mistralChat, chatErr := buildChatModel(parser.OpenAIChatConfig{
			APIKey:  cfg.Mistral.APIKey,
			BaseURL: cfg.Mistral.BaseURL,
			Model:   cfg.Mistral.ChatModel,
			Timeout: mistralTimeout,
		}, cfg.Mistral.RequestsPerMinute, cfg.OpenAI.MaxRetries)
		if chatErr != nil {
			return nil, fmt.Errorf("初始化 Mistral 对话模型失败: %w", chatErr)
		}
		opts = append(opts, WithMistral(ocr, mistralChat))
	case errors.Is(err, parser.ErrMissingAPIKey):
		logger.Warn().Msg("未配置 MISTRAL_API_KEY，mistral 提供方不可用")
	default:
		return nil, fmt.Errorf("初始化 Mistral OCR 失败: %w", err)
	}

	return NewExtractor(opts...), nil
}

// BuildQueryExtractor 检索条件抽取使用独立的模型配置，温度用服务端默认值
func BuildQueryExtractor(cfg *config.Config) (*LLMQueryExtractor, error) {
	chat, err := buildChatModel(parser.OpenAIChatConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.SearchModel,
		Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	}, cfg.OpenAI.RequestsPerMinute, cfg.OpenAI.MaxRetries)
	if errors.Is(err, parser.ErrMissingAPIKey) {
		logger.Warn().Msg("未配置 OPENAI_API_KEY，检索条件抽取不可用")
		return NewLLMQueryExtractor(nil), nil
	}
	if err != nil {
		return nil, err
	}
	return NewLLMQueryExtractor(chat), nil
}

// BuildEmbedder 入库与检索共用同一个向量化组件
func BuildEmbedder(cfg *config.Config) (*parser.OpenAIEmbedder, error) {
	return parser.NewOpenAIEmbedder(parser.OpenAIEmbedderConfig{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.OpenAI.EmbeddingDimensions,
		Timeout:    time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	})
}

func buildChatModel(chatCfg parser.OpenAIChatConfig, qpm, maxRetries int) (model.ToolCallingChatModel, error) {
	chat, err := parser.NewOpenAIChatModel(chatCfg)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewRateLimitedLLMModel(chat, qpm).
		WithRetryPolicy(llmRetryWait, maxRetries).
		WithRetryClassifier(parser.IsTransientProviderError), nil
}
