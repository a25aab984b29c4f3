package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resume-search/internal/logger"
	"resume-search/internal/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ErrMissingAPIKey 未配置模型服务的 API Key
var ErrMissingAPIKey = errors.New("api key is required")

// OpenAIChatConfig OpenAI 兼容对话接口的配置，Mistral 也走这一套
type OpenAIChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// OpenAIChatModel 基于 openai-go 的 eino 对话模型
type OpenAIChatModel struct {
	client      openai.Client
	model       string
	temperature *float32
	maxTokens   int
	tools       []openai.ChatCompletionToolParam
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 创建对话模型。重试交给外层限流代理，这里关闭 SDK 自带的重试
func NewOpenAIChatModel(cfg OpenAIChatConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	m := &OpenAIChatModel{
		client:      openai.NewClient(clientOptions(cfg.APIKey, cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	logger.Info().Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("对话模型客户端已创建")
	return m, nil
}

func clientOptions(apiKey, baseURL string, timeout time.Duration, httpClient *http.Client) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

// Generate 单次对话补全
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{
		Temperature: m.temperature,
		Model:       &m.model,
	}, opts...)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(*common.Model),
		Messages: toOpenAIMessages(input),
	}
	if common.Temperature != nil {
		params.Temperature = openai.Float(float64(*common.Temperature))
	}
	if common.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*common.MaxTokens))
	} else if m.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(m.maxTokens))
	}
	if len(m.tools) > 0 {
		params.Tools = m.tools
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model %s returned no choices", *common.Model)
	}

	choice := resp.Choices[0]
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(choice.FinishReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

// Stream 以单帧流的形式返回完整回复
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具的新实例
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Desc),
		}
		if t.ParamsOneOf != nil {
			s, err := t.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("convert params of tool %s: %w", t.Name, err)
			}
			raw, err := json.Marshal(s)
			if err != nil {
				return nil, err
			}
			var params shared.FunctionParameters
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, err
			}
			fn.Parameters = params
		}
		converted = append(converted, openai.ChatCompletionToolParam{Function: fn})
	}

	clone := *m
	clone.tools = converted
	return &clone, nil
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case schema.Tool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// IsTransientProviderError 模型服务的瞬时故障：429、5xx、超时与连接错误
func IsTransientProviderError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return ratelimit.IsRetryableError(err)
}
