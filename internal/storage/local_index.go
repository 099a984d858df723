package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 定义本地索引的专用tracer
var localIndexTracer = otel.Tracer("resume-match-go/storage/localindex")

// 确保LocalIndex实现了VectorDatabase接口
var _ VectorDatabase = (*LocalIndex)(nil)

// localRecord 磁盘上的一条记录，JSON一文件一记录
type localRecord struct {
	Record types.ResumeRecord `json:"record"`
	Vector []float64          `json:"vector"`
}

// LocalIndex 文件持久化的向量索引。全部记录驻留内存，
// 每次Upsert先写临时文件再rename，保证单条记录的替换是原子的。
// 向量要求已归一化，检索用点积即余弦相似度。
type LocalIndex struct {
	dir    string
	logger *log.Logger

	mu      sync.RWMutex
	records map[string]localRecord
	order   []string // 首次写入顺序，保证同分命中的稳定排序
}

// LocalIndexOption 定义LocalIndex构造函数选项
type LocalIndexOption func(*LocalIndex)

// WithLocalIndexLogger 配置自定义日志记录器
func WithLocalIndexLogger(logger *log.Logger) LocalIndexOption {
	return func(ix *LocalIndex) {
		ix.logger = logger
	}
}

// NewLocalIndex 打开(或创建)目录下的索引并加载全部记录
func NewLocalIndex(dir string, opts ...LocalIndexOption) (*LocalIndex, error) {
	if dir == "" {
		return nil, fmt.Errorf("索引目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建索引目录 %s 失败: %w", dir, err)
	}

	ix := &LocalIndex{
		dir:     dir,
		logger:  log.New(io.Discard, "", 0),
		records: make(map[string]localRecord),
	}
	for _, opt := range opts {
		opt(ix)
	}

	if err := ix.load(); err != nil {
		return nil, err
	}

	ix.logger.Printf("本地索引已加载: dir=%s, records=%d", dir, len(ix.records))
	return ix, nil
}

// load 读入目录下全部记录文件。文件名排序保证重启后的遍历顺序确定。
func (ix *LocalIndex) load() error {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		return fmt.Errorf("读取索引目录失败: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(ix.dir, name))
		if err != nil {
			return fmt.Errorf("读取记录文件 %s 失败: %w", name, err)
		}
		var rec localRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("解析记录文件 %s 失败: %w", name, err)
		}
		if rec.Record.ID == "" {
			ix.logger.Printf("跳过无ID的记录文件: %s", name)
			continue
		}
		if _, ok := ix.records[rec.Record.ID]; !ok {
			ix.order = append(ix.order, rec.Record.ID)
		}
		ix.records[rec.Record.ID] = rec
	}
	return nil
}

// Upsert 写入或整条替换一条记录。磁盘写入成功后才更新内存视图。
func (ix *LocalIndex) Upsert(ctx context.Context, record types.ResumeRecord, vector []float64) error {
	_, span := localIndexTracer.Start(ctx, "LocalIndex.Upsert",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "localfs"),
		attribute.String("db.operation", "upsert"),
		attribute.String("record.id", record.ID),
		attribute.Int("vector.size", len(vector)),
	)

	if record.ID == "" {
		err := fmt.Errorf("记录ID不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}
	if len(vector) == 0 {
		err := fmt.Errorf("记录 %s 的向量为空", record.ID)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	data, err := json.Marshal(localRecord{Record: record, Vector: vector})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("序列化记录 %s 失败: %w", record.ID, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// 临时文件+rename，单条记录替换原子生效
	final := filepath.Join(ix.dir, record.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("写入记录文件失败: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("落盘记录文件失败: %w", err)
	}

	if _, ok := ix.records[record.ID]; !ok {
		ix.order = append(ix.order, record.ID)
	}
	ix.records[record.ID] = localRecord{Record: record, Vector: vector}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Search 暴力点积检索。相似度相同的记录保持首次写入顺序。
func (ix *LocalIndex) Search(ctx context.Context, queryVector []float64, limit int) ([]SearchHit, error) {
	_, span := localIndexTracer.Start(ctx, "LocalIndex.Search",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "localfs"),
		attribute.String("db.operation", "search"),
		attribute.Int("query_vector.size", len(queryVector)),
		attribute.Int("search.limit", limit),
	)

	if len(queryVector) == 0 {
		err := fmt.Errorf("查询向量为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	ix.mu.RLock()
	hits := make([]SearchHit, 0, len(ix.order))
	for _, id := range ix.order {
		rec := ix.records[id]
		if len(rec.Vector) != len(queryVector) {
			continue
		}
		hits = append(hits, SearchHit{
			ID:       rec.Record.ID,
			Text:     rec.Record.Text,
			Metadata: rec.Record.Metadata,
			Score:    dotProduct(queryVector, rec.Vector),
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	span.SetAttributes(attribute.Int("search.results.count", len(hits)))
	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// Count 返回索引中的记录数
func (ix *LocalIndex) Count(ctx context.Context) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int64(len(ix.records)), nil
}

// Dir 返回索引的持久化目录
func (ix *LocalIndex) Dir() string {
	return ix.dir
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
