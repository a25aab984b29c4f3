package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfig_FillsDefaults 只写连接信息时，调优参数应被补齐
func TestLoadConfig_FillsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("MYSQL_PORT", "")
	t.Setenv("MYSQL_HOST", "")
	t.Setenv("CORS_ORIGINS", "")

	configPath := writeTempConfig(t, `
mysql:
  host: "db.internal"
  username: "app"
  database: "resumes"
qdrant:
  endpoint: "http://qdrant:6333"
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "db.internal", config.MySQL.Host)
	assert.Equal(t, 3306, config.MySQL.Port, "未配置端口时使用默认端口")
	assert.Equal(t, "resumes", config.Qdrant.Collection)
	assert.Equal(t, 3072, config.Qdrant.Dimension, "向量维度跟随 embedding 维度")
	assert.Equal(t, 3, config.Search.TopK)
	assert.Equal(t, "gpt-4-turbo", config.OpenAI.ExtractionModel)
	assert.Equal(t, "mistral-ocr-latest", config.Mistral.OCRModel)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.CORSOrigins)

	// 连接地址不会被默认值补齐
	assert.Empty(t, config.RabbitMQ.URL, "未配置 RabbitMQ 时应保持关闭")
	assert.Empty(t, config.Redis.Address)
	assert.Empty(t, config.MinIO.Endpoint)
}

// TestLoadConfig_EnvOverrides 环境变量覆盖配置文件
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("MISTRAL_API_KEY", "mistral-env")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	configPath := writeTempConfig(t, `
openai:
  api_key: "sk-file"
mysql:
  host: "localhost"
  port: 3306
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", config.OpenAI.APIKey)
	assert.Equal(t, "mistral-env", config.Mistral.APIKey)
	assert.Equal(t, 3307, config.MySQL.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, config.Server.CORSOrigins)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := writeTempConfig(t, "server: [unclosed")
	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "q.resume_ingest", loaded.RabbitMQ.IngestQueue)

	err = CreateSampleConfig(path)
	require.Error(t, err, "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, GetDuration("5m", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("bogus", time.Second))
}
