package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	Aliyun struct {
		APIKey    string          `yaml:"api_key"`
		APIURL    string          `yaml:"api_url"`
		Model     string          `yaml:"model"`
		Embedding EmbeddingConfig `yaml:"embedding"`
	} `yaml:"aliyun"`

	// 索引后端: local(文件持久化) 或 qdrant
	Index IndexConfig `yaml:"index"`

	Qdrant QdrantConfig `yaml:"qdrant"`

	Redis RedisConfig `yaml:"redis"`

	MinIO MinIOConfig `yaml:"minio"`

	Server ServerConfig `yaml:"server"`

	Scorer ScorerConfig `yaml:"scorer"`

	Evaluator EvaluatorConfig `yaml:"evaluator"`

	Search SearchConfig `yaml:"search"`

	Logger LoggerConfig `yaml:"logger"`

	Tracing TracingConfig `yaml:"tracing"`
}

// EmbeddingConfig 阿里云Embedding配置 (OpenAI兼容端点)
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
}

// IndexConfig 简历索引配置
type IndexConfig struct {
	Backend string `yaml:"backend"` // local | qdrant
	Dir     string `yaml:"dir"`     // local后端的持久化目录
}

// QdrantConfig Qdrant向量数据库配置
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Collection         string `yaml:"collection"`
	Dimension          int    `yaml:"dimension"`
	APIKey             string `yaml:"api_key,omitempty"`
	DefaultSearchLimit int    `yaml:"default_search_limit"`
}

// RedisConfig Redis配置，用于JD查询向量缓存
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	// 重试设置
	MaxRetries        int `yaml:"max_retries"`
	MinRetryBackoffMS int `yaml:"min_retry_backoff_ms"`
	MaxRetryBackoffMS int `yaml:"max_retry_backoff_ms"`
	// 查询向量缓存过期时间(小时)
	QueryVectorTTLHours int `yaml:"query_vector_ttl_hours"`
}

// MinIOConfig MinIO配置，用于原始简历文档归档
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	BucketName      string `yaml:"bucketName"`
	Location        string `yaml:"location"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ScorerConfig 多信号打分器配置
type ScorerConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	TitleWeight   float64 `yaml:"title_weight"`
	YearsWeight   float64 `yaml:"years_weight"`
}

// EvaluatorConfig 三阶段评估器配置
type EvaluatorConfig struct {
	ModelName           string  `yaml:"modelName"`
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"maxTokens"`
	CompletionTimeout   string  `yaml:"completionTimeout"`   // 单次LLM调用超时
	Parallelism         int     `yaml:"parallelism"`         // 阶段二并行度，<=1为串行
	MaxRequirements     int     `yaml:"maxRequirements"`     // 阶段二最多评估的要求数
	CandidateSegments   int     `yaml:"candidateSegments"`   // 每条要求提供给LLM的候选片段数
	MaxPatterns         int     `yaml:"maxPatterns"`         // 阶段三最多归纳的模式数
	ReferenceSegmentCap int     `yaml:"referenceSegmentCap"` // 参考片段上限
}

// SearchConfig 检索服务配置
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	TimeFormat   string `yaml:"time_format"`
	ReportCaller bool   `yaml:"report_caller"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // OTLP gRPC端点
	ServiceName string `yaml:"service_name"`
}

// LoadConfig 从文件加载配置。路径为空时在常见位置搜索，
// 测试环境下找不到文件则回退到默认配置。
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-match", "config.yaml"),
		}

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths,
				filepath.Join(execDir, "config.yaml"),
				filepath.Join(execDir, "..", "config.yaml"),
			)
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		if configPath == "" {
			if inTestEnvironment() {
				return DefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		if inTestEnvironment() {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 环境变量覆盖
	if envKey := os.Getenv("ALIYUN_API_KEY"); envKey != "" {
		config.Aliyun.APIKey = envKey
	}
	if envURL := os.Getenv("ALIYUN_API_URL"); envURL != "" {
		config.Aliyun.APIURL = envURL
	}
	if envModel := os.Getenv("ALIYUN_MODEL"); envModel != "" {
		config.Aliyun.Model = envModel
	}

	applyDefaults(&config)
	return &config, nil
}

func inTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// applyDefaults 填充缺失的配置项
func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Index.Backend == "" {
		config.Index.Backend = "local"
	}
	if config.Index.Dir == "" {
		config.Index.Dir = "data/resume_index"
	}
	if config.Aliyun.Embedding.Model == "" {
		config.Aliyun.Embedding.Model = "text-embedding-v3"
	}
	if config.Aliyun.Embedding.Dimensions == 0 {
		config.Aliyun.Embedding.Dimensions = 1024
	}
	if config.Aliyun.Embedding.BaseURL == "" {
		config.Aliyun.Embedding.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}

	// 打分权重默认值，四项之和必须为1
	if config.Scorer.VectorWeight == 0 && config.Scorer.KeywordWeight == 0 &&
		config.Scorer.TitleWeight == 0 && config.Scorer.YearsWeight == 0 {
		config.Scorer.VectorWeight = 0.55
		config.Scorer.KeywordWeight = 0.25
		config.Scorer.TitleWeight = 0.15
		config.Scorer.YearsWeight = 0.05
	}

	if config.Evaluator.Temperature == 0 {
		config.Evaluator.Temperature = 0.2
	}
	if config.Evaluator.MaxTokens == 0 {
		config.Evaluator.MaxTokens = 2048
	}
	if config.Evaluator.CompletionTimeout == "" {
		config.Evaluator.CompletionTimeout = "90s"
	}
	if config.Evaluator.MaxRequirements == 0 {
		config.Evaluator.MaxRequirements = 15
	}
	if config.Evaluator.CandidateSegments == 0 {
		config.Evaluator.CandidateSegments = 5
	}
	if config.Evaluator.MaxPatterns == 0 {
		config.Evaluator.MaxPatterns = 5
	}
	if config.Evaluator.ReferenceSegmentCap == 0 {
		config.Evaluator.ReferenceSegmentCap = 20
	}

	if config.Search.DefaultTopK == 0 {
		config.Search.DefaultTopK = 5
	}
	if config.Qdrant.DefaultSearchLimit == 0 {
		config.Qdrant.DefaultSearchLimit = 10
	}
	if config.Redis.QueryVectorTTLHours == 0 {
		config.Redis.QueryVectorTTLHours = 24
	}
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "resume-match"
	}
}

// DefaultConfig 返回一份可用于测试的默认配置
func DefaultConfig() *Config {
	config := &Config{}
	config.Aliyun.APIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	config.Aliyun.Model = "qwen-plus"
	if envKey := os.Getenv("ALIYUN_API_KEY"); envKey != "" {
		config.Aliyun.APIKey = envKey
	} else {
		config.Aliyun.APIKey = "test_api_key"
	}

	config.Qdrant.Endpoint = "http://localhost:6333"
	config.Qdrant.Collection = "resumes"
	config.Qdrant.Dimension = 1024

	config.Redis.Address = "localhost:6379"
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.MaxRetries = 3
	config.Redis.MinRetryBackoffMS = 8
	config.Redis.MaxRetryBackoffMS = 512

	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.BucketName = "resume-docs"

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	applyDefaults(config)
	return config
}

// ScorerWeights 返回打分权重并校验归一性
func (c *Config) ScorerWeights() (vec, kw, title, yrs float64, err error) {
	vec = c.Scorer.VectorWeight
	kw = c.Scorer.KeywordWeight
	title = c.Scorer.TitleWeight
	yrs = c.Scorer.YearsWeight
	sum := vec + kw + title + yrs
	if sum < 0.999 || sum > 1.001 {
		return 0, 0, 0, 0, fmt.Errorf("打分权重之和必须为1, 实际为 %.3f", sum)
	}
	return vec, kw, title, yrs, nil
}

// GetDuration 解析配置中的时长字符串，失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
