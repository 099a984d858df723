package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig_ValidYAML 验证正确的 YAML 能被完整加载并填充默认值
func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
aliyun:
  api_key: "yaml_key"
  model: "qwen-max"
  embedding:
    model: "text-embedding-v3"
    dimensions: 1024
index:
  backend: "qdrant"
qdrant:
  endpoint: "http://localhost:6333"
  collection: "resumes_test"
  dimension: 1024
server:
  address: ":9090"
scorer:
  vector_weight: 0.55
  keyword_weight: 0.25
  title_weight: 0.15
  years_weight: 0.05
evaluator:
  temperature: 0.3
  maxTokens: 4096
  completionTimeout: "120s"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml_key", cfg.Aliyun.APIKey)
	assert.Equal(t, "qwen-max", cfg.Aliyun.Model)
	assert.Equal(t, "qdrant", cfg.Index.Backend)
	assert.Equal(t, "resumes_test", cfg.Qdrant.Collection)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 0.3, cfg.Evaluator.Temperature)
	assert.Equal(t, 4096, cfg.Evaluator.MaxTokens)
	assert.Equal(t, "120s", cfg.Evaluator.CompletionTimeout)

	// YAML 未写的项应被默认值补齐
	assert.Equal(t, "data/resume_index", cfg.Index.Dir)
	assert.Equal(t, 15, cfg.Evaluator.MaxRequirements)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, 24, cfg.Redis.QueryVectorTTLHours)
	assert.Equal(t, "resume-match", cfg.Tracing.ServiceName)
}

// TestLoadConfig_InvalidYAML 验证语法错误的 YAML 返回解析错误
func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := "aliyun:\n  api_key: [unclosed\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

// TestLoadConfig_MissingFileInTests 测试环境下找不到文件时回退到默认配置
func TestLoadConfig_MissingFileInTests(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no_such.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "local", cfg.Index.Backend)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	content := `
aliyun:
  api_key: "yaml_key"
  model: "qwen-plus"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("ALIYUN_API_KEY", "env_key")
	t.Setenv("ALIYUN_MODEL", "qwen-turbo")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env_key", cfg.Aliyun.APIKey)
	assert.Equal(t, "qwen-turbo", cfg.Aliyun.Model)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "qwen-plus", cfg.Aliyun.Model)
	assert.Equal(t, "text-embedding-v3", cfg.Aliyun.Embedding.Model)
	assert.Equal(t, 1024, cfg.Aliyun.Embedding.Dimensions)
	assert.Equal(t, "local", cfg.Index.Backend)
	assert.Equal(t, 0.55, cfg.Scorer.VectorWeight)
	assert.Equal(t, 0.25, cfg.Scorer.KeywordWeight)
	assert.Equal(t, 0.15, cfg.Scorer.TitleWeight)
	assert.Equal(t, 0.05, cfg.Scorer.YearsWeight)
	assert.Equal(t, "90s", cfg.Evaluator.CompletionTimeout)
}

func TestScorerWeights(t *testing.T) {
	cfg := DefaultConfig()
	vec, kw, title, yrs, err := cfg.ScorerWeights()
	require.NoError(t, err)
	assert.Equal(t, 0.55, vec)
	assert.Equal(t, 0.25, kw)
	assert.Equal(t, 0.15, title)
	assert.Equal(t, 0.05, yrs)

	cfg.Scorer.VectorWeight = 0.9
	_, _, _, _, err = cfg.ScorerWeights()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "打分权重之和必须为1")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, GetDuration("90s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("not-a-duration", time.Minute))
	assert.Equal(t, 2*time.Hour, GetDuration("2h", time.Minute))
}
