package parser

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-search/internal/logger"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// MistralOCRConfig Mistral OCR 配置
type MistralOCRConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// MistralOCR 通过 Mistral 的文件与 OCR 接口把 PDF 转成 markdown 文本。
// Mistral 与 OpenAI 的 REST 约定一致，复用 openai-go 的传输层
type MistralOCR struct {
	client openai.Client
	model  string
	log    zerolog.Logger
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// NewMistralOCR 创建 OCR 客户端
func NewMistralOCR(cfg MistralOCRConfig) (*MistralOCR, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-ocr-latest"
	}
	return &MistralOCR{
		client: openai.NewClient(clientOptions(cfg.APIKey, cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)...),
		model:  cfg.Model,
		log:    logger.Component("mistral_ocr"),
	}, nil
}

// ExtractFromFile 上传文件、换取签名URL、执行OCR，按页序以换行拼接各页 markdown
func (o *MistralOCR) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	uploaded, err := o.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(f, filepath.Base(filePath), "application/pdf"),
		Purpose: openai.FilePurpose("ocr"),
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer func() {
		// 清理失败只记录，不影响结果
		if _, err := o.client.Files.Delete(context.WithoutCancel(ctx), uploaded.ID); err != nil {
			o.log.Warn().Err(err).Str("file_id", uploaded.ID).Msg("删除OCR临时文件失败")
		}
	}()

	var signed struct {
		URL string `json:"url"`
	}
	if err := o.client.Get(ctx, "files/"+uploaded.ID+"/url", nil, &signed, option.WithQuery("expiry", "24")); err != nil {
		return "", fmt.Errorf("get signed url: %w", err)
	}
	if signed.URL == "" {
		return "", fmt.Errorf("get signed url: empty url for file %s", uploaded.ID)
	}

	var resp ocrResponse
	req := ocrRequest{
		Model:    o.model,
		Document: ocrDocument{Type: "document_url", DocumentURL: signed.URL},
	}
	if err := o.client.Post(ctx, "ocr", req, &resp); err != nil {
		return "", fmt.Errorf("ocr process: %w", err)
	}

	pages := make([]string, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		pages = append(pages, p.Markdown)
	}
	text := strings.Join(pages, "\n")

	o.log.Debug().Str("file", filepath.Base(filePath)).Int("pages", len(resp.Pages)).Int("chars", len(text)).Msg("OCR完成")
	return text, nil
}
