package storage

import (
	"context"

	"resume-match-go/internal/types"
)

// SearchHit 向量检索的一条命中结果，Score为余弦相似度
type SearchHit struct {
	ID       string
	Text     string
	Metadata types.ResumeMetadata
	Score    float64
}

// VectorDatabase 简历向量库接口。Upsert按记录ID整条替换，
// 同一逻辑键的旧文本、旧向量、旧元数据不会残留。
type VectorDatabase interface {
	// Upsert 写入或整条替换一条简历记录及其向量
	Upsert(ctx context.Context, record types.ResumeRecord, vector []float64) error

	// Search 按余弦相似度降序返回最多limit条命中
	Search(ctx context.Context, queryVector []float64, limit int) ([]SearchHit, error)

	// Count 返回库中记录总数
	Count(ctx context.Context) (int64, error)
}
