package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx, WithParseTimeout(10*time.Second))
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor.parser)
	assert.Equal(t, 10*time.Second, extractor.timeout)
}

func TestExtractFromFile_Missing(t *testing.T) {
	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)

	_, _, err = extractor.ExtractFromFile(context.Background(), filepath.Join(t.TempDir(), "none.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open PDF file")
}

func TestExtractTextFromReader_NotAPDF(t *testing.T) {
	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)

	_, _, err = extractor.ExtractTextFromReader(context.Background(), strings.NewReader("plain text, not a pdf"), "memory://bad")
	assert.Error(t, err)
}

// TestExtractFromFile_Sample 需要 testdata 下的样例简历，缺失时跳过
func TestExtractFromFile_Sample(t *testing.T) {
	var filePath string
	for _, p := range []string{"testdata/sample_resume.pdf", "../../testdata/sample_resume.pdf"} {
		if _, err := os.Stat(p); err == nil {
			filePath = p
			break
		}
	}
	if filePath == "" {
		t.Skip("找不到测试PDF文件，跳过测试")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	text, metadata, err := extractor.ExtractFromFile(ctx, filePath)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Equal(t, filePath, metadata["source_uri"])
	assert.Equal(t, len(text), metadata["text_length"])
}
