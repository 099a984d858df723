package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-match-go/internal/config"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound 键不存在时返回，封装底层的redis.Nil
var ErrNotFound = redis.Nil

// 查询向量缓存的键前缀
const queryVectorKeyPrefix = "match:query_vector:"

// Redis 封装Redis客户端，用于JD查询向量的缓存。
// 同一段JD文本反复检索时避免重复调用Embedding接口。
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// queryVectorTTL 返回查询向量缓存的过期时间
func (r *Redis) queryVectorTTL() time.Duration {
	hours := r.config.QueryVectorTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// SetQueryVector 缓存一条查询向量。键为查询文本的哈希，
// 同时记录产生向量的模型名，换模型后旧缓存自动失效。
func (r *Redis) SetQueryVector(ctx context.Context, queryHash string, vector []float64, embeddingModel string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if queryHash == "" {
		return fmt.Errorf("query hash cannot be empty")
	}
	if len(vector) == 0 {
		return fmt.Errorf("vector cannot be empty")
	}

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化查询向量失败: %w", err)
	}

	key := queryVectorKeyPrefix + queryHash
	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"vector":     string(vectorJSON),
		"model":      embeddingModel,
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, r.queryVectorTTL())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入查询向量缓存失败: %w", err)
	}
	return nil
}

// GetQueryVector 读取缓存的查询向量。缓存缺失或模型不一致时返回ErrNotFound。
func (r *Redis) GetQueryVector(ctx context.Context, queryHash string, embeddingModel string) ([]float64, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}

	key := queryVectorKeyPrefix + queryHash
	fields, err := r.Client.HMGet(ctx, key, "vector", "model").Result()
	if err != nil {
		return nil, fmt.Errorf("读取查询向量缓存失败: %w", err)
	}
	if len(fields) != 2 || fields[0] == nil {
		return nil, ErrNotFound
	}

	if model, ok := fields[1].(string); !ok || model != embeddingModel {
		return nil, ErrNotFound
	}

	vectorJSON, ok := fields[0].(string)
	if !ok {
		return nil, ErrNotFound
	}

	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, fmt.Errorf("解析缓存的查询向量失败: %w", err)
	}
	return vector, nil
}
