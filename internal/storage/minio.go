package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"resume-match-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO 原始简历文档的归档存储。索引只保留抽取出的纯文本，
// 上传的PDF/文本原件进对象存储，按记录键可回取。
type MinIO struct {
	client *minio.Client
	bucket string
	cfg    *config.MinIOConfig
	logger *log.Logger
}

// NewMinIO 创建MinIO客户端并确保归档桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.BucketName
	if bucket == "" {
		bucket = "resume-docs"
	}

	m := &MinIO{
		client: client,
		bucket: bucket,
		cfg:    cfg,
		logger: logger,
	}

	if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保归档桶 %s 存在失败: %w", bucket, err)
	}

	logger.Printf("[MinIO] 客户端初始化成功: endpoint=%s, bucket=%s", cfg.Endpoint, bucket)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] 存储桶 %s 不存在，创建中...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

// ArchiveDocument 归档一份原始简历文档
func (m *MinIO) ArchiveDocument(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	if objectName == "" {
		return "", fmt.Errorf("对象名不能为空")
	}
	if contentType == "" {
		contentType = contentTypeForExt(objectName)
	}

	info, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("归档文档 %s 失败: %w", objectName, err)
	}

	m.logger.Printf("[MinIO] 已归档文档: %s (%d bytes)", objectName, info.Size)
	return objectName, nil
}

// ArchiveDocumentBytes 归档字节形式的文档
func (m *MinIO) ArchiveDocumentBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	return m.ArchiveDocument(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
}

// FetchDocument 取回归档的文档内容
func (m *MinIO) FetchDocument(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取文档 %s 失败: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取文档 %s 内容失败: %w", objectName, err)
	}
	return data, nil
}

// RemoveDocument 删除归档的文档
func (m *MinIO) RemoveDocument(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除文档 %s 失败: %w", objectName, err)
	}
	return nil
}

// contentTypeForExt 根据文件扩展名推断Content-Type
func contentTypeForExt(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".md"):
		return "text/plain"
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
