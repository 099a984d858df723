package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"resume-match-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖。
// 向量库是管线的硬依赖，Redis和MinIO是可选增强。
type Storage struct {
	// 向量库后端 (local 或 qdrant)
	VectorDB VectorDatabase

	// 查询向量缓存
	Redis *Redis

	// 原始文档归档
	MinIO *MinIO
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error

	// 向量库后端，初始化失败直接报错
	switch cfg.Index.Backend {
	case "", "local":
		var indexLogger *log.Logger
		if cfg.Logger.Level == "debug" {
			indexLogger = log.New(os.Stderr, "[LocalIndex] ", log.LstdFlags)
		} else {
			indexLogger = log.New(io.Discard, "", 0)
		}
		storage.VectorDB, err = NewLocalIndex(cfg.Index.Dir, WithLocalIndexLogger(indexLogger))
		if err != nil {
			return nil, fmt.Errorf("初始化本地索引失败: %w", err)
		}
		log.Printf("本地索引初始化成功: dir=%s", cfg.Index.Dir)
	case "qdrant":
		storage.VectorDB, err = NewQdrant(&cfg.Qdrant)
		if err != nil {
			return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
		}
		log.Println("Qdrant客户端初始化成功")
	default:
		return nil, fmt.Errorf("未知的索引后端: %s", cfg.Index.Backend)
	}

	// Redis查询向量缓存 (可选)
	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败, 查询向量缓存不可用: %v", err)
			storage.Redis = nil
		} else {
			log.Println("Redis客户端初始化成功")
		}
	} else {
		log.Println("Redis未配置, 跳过查询向量缓存")
	}

	// MinIO文档归档 (可选)
	if cfg.MinIO.Endpoint != "" {
		var minioLogger *log.Logger
		if cfg.Logger.Level == "debug" {
			minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags)
		} else {
			minioLogger = log.New(io.Discard, "", 0)
		}
		storage.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
		if err != nil {
			log.Printf("警告: 初始化MinIO失败, 文档归档不可用: %v", err)
			storage.MinIO = nil
		} else {
			log.Println("MinIO客户端初始化成功")
		}
	} else {
		log.Println("MinIO未配置, 跳过文档归档")
	}

	return storage, nil
}

// Close 关闭持有连接的组件
func (s *Storage) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	// LocalIndex/Qdrant/MinIO 不持有需要显式关闭的连接
}
