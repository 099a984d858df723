package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"strings"

	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 定义简历索引的专用tracer
var indexTracer = otel.Tracer("resume-match-go/storage/index")

// RecordIDNamespace 生成确定性简历记录ID的专用命名空间。
// 同一逻辑键(通常是文件路径)总是映射到同一个记录ID，重复入库即覆盖。
// UUID generated via `uuidgen`
var RecordIDNamespace = uuid.Must(uuid.FromString("a4b0cfb3-21e6-47d8-9c35-6f1de07a9c44"))

// TextEmbedder 索引消费的文本向量化接口，返回的向量要求已归一化
type TextEmbedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
	GetDimensions() int
}

// RecordID 由逻辑键派生确定性的记录ID
func RecordID(idKey string) string {
	return uuid.NewV5(RecordIDNamespace, idKey).String()
}

// QueryHit 索引检索的一条命中，Distance = 1 - Similarity
type QueryHit struct {
	ID         string               `json:"id"`
	Text       string               `json:"text"`
	Metadata   types.ResumeMetadata `json:"metadata"`
	Similarity float64              `json:"similarity"`
	Distance   float64              `json:"distance"`
}

// ResumeIndex 简历语义索引，组合向量化与向量库，
// 可选挂一层Redis查询向量缓存。
type ResumeIndex struct {
	embedder       TextEmbedder
	db             VectorDatabase
	cache          *Redis // 可选
	embeddingModel string
	logger         *log.Logger
}

// ResumeIndexOption 定义ResumeIndex构造函数选项
type ResumeIndexOption func(*ResumeIndex)

// WithQueryVectorCache 挂载查询向量缓存
func WithQueryVectorCache(cache *Redis, embeddingModel string) ResumeIndexOption {
	return func(ix *ResumeIndex) {
		ix.cache = cache
		ix.embeddingModel = embeddingModel
	}
}

// WithIndexLogger 配置自定义日志记录器
func WithIndexLogger(logger *log.Logger) ResumeIndexOption {
	return func(ix *ResumeIndex) {
		ix.logger = logger
	}
}

// NewResumeIndex 创建简历索引
func NewResumeIndex(embedder TextEmbedder, db VectorDatabase, opts ...ResumeIndexOption) *ResumeIndex {
	ix := &ResumeIndex{
		embedder: embedder,
		db:       db,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Upsert 向量化文本并写入(或整条替换)一条简历记录，返回记录ID。
// 向量化失败视为硬错误，索引不允许残留无向量的记录。
func (ix *ResumeIndex) Upsert(ctx context.Context, idKey, text string, meta types.ResumeMetadata) (string, error) {
	ctx, span := indexTracer.Start(ctx, "ResumeIndex.Upsert",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if strings.TrimSpace(idKey) == "" {
		err := types.Errorf(types.KindValidationFailure, "记录逻辑键不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		err := types.Errorf(types.KindValidationFailure, "简历文本不能为空: key=%s", idKey)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	recordID := RecordID(idKey)
	span.SetAttributes(
		attribute.String("record.id", recordID),
		attribute.Int("text.length", len(text)),
	)

	vectors, err := ix.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		wrapped := types.NewError(types.KindEmbeddingFailure, "简历向量化失败", err)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeEmbedding)
		return "", wrapped
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		wrapped := types.Errorf(types.KindEmbeddingFailure, "向量化返回了 %d 个向量, 期望1个", len(vectors))
		tracing.RecordError(span, wrapped, tracing.ErrorTypeEmbedding)
		return "", wrapped
	}

	record := types.ResumeRecord{ID: recordID, Text: text, Metadata: meta}
	if err := ix.db.Upsert(ctx, record, vectors[0]); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", err
	}

	ix.logger.Printf("简历已入库: key=%s, id=%s", idKey, recordID)
	span.SetStatus(codes.Ok, "")
	return recordID, nil
}

// Query 用查询文本做语义检索，按相似度降序返回最多topK条。
// 空查询在触达向量化之前即拒绝。
func (ix *ResumeIndex) Query(ctx context.Context, queryText string, topK int) ([]QueryHit, error) {
	ctx, span := indexTracer.Start(ctx, "ResumeIndex.Query",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if strings.TrimSpace(queryText) == "" {
		err := types.Errorf(types.KindValidationFailure, "查询文本不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	span.SetAttributes(
		attribute.Int("query.top_k", topK),
		attribute.Int("query.length", len(queryText)),
	)

	vector, err := ix.queryVector(ctx, queryText)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}

	hits, err := ix.db.Search(ctx, vector, topK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	results := make([]QueryHit, 0, len(hits))
	for _, hit := range hits {
		results = append(results, QueryHit{
			ID:         hit.ID,
			Text:       hit.Text,
			Metadata:   hit.Metadata,
			Similarity: hit.Score,
			Distance:   1 - hit.Score,
		})
	}

	span.SetAttributes(attribute.Int("query.results.count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// Count 返回索引中的记录数
func (ix *ResumeIndex) Count(ctx context.Context) (int64, error) {
	return ix.db.Count(ctx)
}

// queryVector 取查询向量，优先读缓存，未命中再向量化并回填
func (ix *ResumeIndex) queryVector(ctx context.Context, queryText string) ([]float64, error) {
	var queryHash string
	if ix.cache != nil {
		sum := sha256.Sum256([]byte(queryText))
		queryHash = hex.EncodeToString(sum[:])
		if vector, err := ix.cache.GetQueryVector(ctx, queryHash, ix.embeddingModel); err == nil {
			ix.logger.Printf("查询向量缓存命中: hash=%s", tracing.SafeRedisKey(queryHash))
			return vector, nil
		} else if !errors.Is(err, ErrNotFound) {
			// 缓存故障只记日志，不阻塞检索
			ix.logger.Printf("读取查询向量缓存失败: %v", err)
		}
	}

	vectors, err := ix.embedder.EmbedStrings(ctx, []string{queryText})
	if err != nil {
		return nil, types.NewError(types.KindEmbeddingFailure, "查询向量化失败", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, types.Errorf(types.KindEmbeddingFailure, "查询向量化返回了 %d 个向量, 期望1个", len(vectors))
	}

	if ix.cache != nil && queryHash != "" {
		if err := ix.cache.SetQueryVector(ctx, queryHash, vectors[0], ix.embeddingModel); err != nil {
			ix.logger.Printf("写入查询向量缓存失败: %v", err)
		}
	}
	return vectors[0], nil
}
