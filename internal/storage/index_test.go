package storage_test

import (
	"context"
	"errors"
	"testing"

	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 确定性的测试用向量化器。按文本首字符映射到固定向量，
// 保证不同文本产出可预测的相似度关系。
type fakeEmbedder struct {
	dimensions int
	failNext   bool
	callCount  int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.callCount++
	if f.failNext {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		vec := make([]float64, f.dimensions)
		if len(text) > 0 {
			vec[int(text[0])%f.dimensions] = 1
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimensions() int { return f.dimensions }

func newTestIndex(t *testing.T) (*storage.ResumeIndex, *fakeEmbedder) {
	t.Helper()
	local, err := storage.NewLocalIndex(t.TempDir())
	require.NoError(t, err)
	embedder := &fakeEmbedder{dimensions: 8}
	return storage.NewResumeIndex(embedder, local), embedder
}

func TestRecordID_Deterministic(t *testing.T) {
	id1 := storage.RecordID("dataset/engineering/42.txt")
	id2 := storage.RecordID("dataset/engineering/42.txt")
	id3 := storage.RecordID("dataset/engineering/43.txt")

	assert.Equal(t, id1, id2, "同一逻辑键必须映射到同一记录ID")
	assert.NotEqual(t, id1, id3)
	assert.Len(t, id1, 36, "记录ID应该是UUID格式")
}

func TestResumeIndex_UpsertAndQuery(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	recordID, err := ix.Upsert(ctx, "resumes/python_dev.txt", "python developer with django",
		types.ResumeMetadata{Skills: []string{"python"}, Category: "engineering"})
	require.NoError(t, err)
	assert.Equal(t, storage.RecordID("resumes/python_dev.txt"), recordID)

	// 首字符相同的查询文本会命中相同向量
	hits, err := ix.Query(ctx, "python backend role", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, recordID, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.Equal(t, []string{"python"}, hits[0].Metadata.Skills)
}

func TestResumeIndex_UpsertSameKeyReplaces(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	id1, err := ix.Upsert(ctx, "resumes/dev.txt", "python v1", types.ResumeMetadata{})
	require.NoError(t, err)
	id2, err := ix.Upsert(ctx, "resumes/dev.txt", "python v2 updated", types.ResumeMetadata{})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hits, err := ix.Query(ctx, "python", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "python v2 updated", hits[0].Text)
}

func TestResumeIndex_Validation(t *testing.T) {
	ix, embedder := newTestIndex(t)
	ctx := context.Background()

	_, err := ix.Upsert(ctx, "", "some text", types.ResumeMetadata{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidationFailure))

	_, err = ix.Upsert(ctx, "key", "   ", types.ResumeMetadata{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidationFailure))

	_, err = ix.Query(ctx, "", 5)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidationFailure))

	// 入参校验失败不应触达向量化
	assert.Zero(t, embedder.callCount)
}

func TestResumeIndex_EmbeddingFailure(t *testing.T) {
	ix, embedder := newTestIndex(t)
	ctx := context.Background()

	embedder.failNext = true
	_, err := ix.Upsert(ctx, "key", "some resume text", types.ResumeMetadata{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindEmbeddingFailure))

	_, err = ix.Query(ctx, "some query", 5)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindEmbeddingFailure))

	// 向量化失败后索引必须保持空
	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
