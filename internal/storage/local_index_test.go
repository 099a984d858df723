package storage_test

import (
	"context"
	"testing"

	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIndex_UpsertAndSearch(t *testing.T) {
	dir := t.TempDir()
	ix, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)

	ctx := context.Background()

	// 三条记录，向量已归一化，与查询向量的点积依次递减
	records := []struct {
		id     string
		vector []float64
	}{
		{"rec-a", []float64{1, 0, 0}},
		{"rec-b", []float64{0.8, 0.6, 0}},
		{"rec-c", []float64{0, 1, 0}},
	}
	for _, rec := range records {
		err := ix.Upsert(ctx, types.ResumeRecord{
			ID:   rec.id,
			Text: "resume text " + rec.id,
			Metadata: types.ResumeMetadata{
				Category: "engineering",
			},
		}, rec.vector)
		require.NoError(t, err)
	}

	hits, err := ix.Search(ctx, []float64{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// 相似度降序
	assert.Equal(t, "rec-a", hits[0].ID)
	assert.Equal(t, "rec-b", hits[1].ID)
	assert.Equal(t, "rec-c", hits[2].ID)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}

	// limit截断
	hits, err = ix.Search(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestLocalIndex_UpsertReplaces(t *testing.T) {
	dir := t.TempDir()
	ix, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)

	ctx := context.Background()

	err = ix.Upsert(ctx, types.ResumeRecord{ID: "rec-1", Text: "old version"}, []float64{1, 0})
	require.NoError(t, err)
	err = ix.Upsert(ctx, types.ResumeRecord{ID: "rec-1", Text: "new version"}, []float64{0, 1})
	require.NoError(t, err)

	// 替换后不应该残留旧记录
	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hits, err := ix.Search(ctx, []float64{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new version", hits[0].Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestLocalIndex_StableOrderOnTies(t *testing.T) {
	dir := t.TempDir()
	ix, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)

	ctx := context.Background()

	// 两条记录与查询向量的相似度完全相同，应保持写入顺序
	require.NoError(t, ix.Upsert(ctx, types.ResumeRecord{ID: "first", Text: "a"}, []float64{0, 1, 0}))
	require.NoError(t, ix.Upsert(ctx, types.ResumeRecord{ID: "second", Text: "b"}, []float64{0, 0, 1}))

	hits, err := ix.Search(ctx, []float64{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].ID)
	assert.Equal(t, "second", hits[1].ID)
}

func TestLocalIndex_ReloadAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert(ctx, types.ResumeRecord{
		ID:   "persisted",
		Text: "python developer",
		Metadata: types.ResumeMetadata{
			Skills: []string{"python", "django"},
			Years:  5,
		},
	}, []float64{0.6, 0.8}))

	// 重新打开同一目录，记录应完整还原
	reopened, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hits, err := reopened.Search(ctx, []float64{0.6, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "persisted", hits[0].ID)
	assert.Equal(t, "python developer", hits[0].Text)
	assert.Equal(t, []string{"python", "django"}, hits[0].Metadata.Skills)
	assert.Equal(t, 5, hits[0].Metadata.Years)
}

func TestLocalIndex_Validation(t *testing.T) {
	dir := t.TempDir()
	ix, err := storage.NewLocalIndex(dir)
	require.NoError(t, err)

	ctx := context.Background()

	err = ix.Upsert(ctx, types.ResumeRecord{ID: "", Text: "x"}, []float64{1})
	assert.Error(t, err, "空ID应该被拒绝")

	err = ix.Upsert(ctx, types.ResumeRecord{ID: "rec", Text: "x"}, nil)
	assert.Error(t, err, "空向量应该被拒绝")

	_, err = ix.Search(ctx, nil, 10)
	assert.Error(t, err, "空查询向量应该被拒绝")
}

func TestNewLocalIndex_EmptyDir(t *testing.T) {
	_, err := storage.NewLocalIndex("")
	assert.Error(t, err)
}
