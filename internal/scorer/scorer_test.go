package scorer

import (
	"context"
	"errors"
	"testing"

	"resume-match-go/internal/config"
	"resume-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder 按文本返回预置向量，用于构造确定性的相似度关系
type stubEmbedder struct {
	vectors map[string][]float64
	fail    map[string]bool
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		if s.fail[text] {
			return nil, errors.New("embedding backend unavailable")
		}
		vec, ok := s.vectors[text]
		if !ok {
			vec = []float64{0, 0}
		}
		out = append(out, vec)
	}
	return out, nil
}

func newTestScorer(t *testing.T, embedder *stubEmbedder) *Scorer {
	t.Helper()
	s, err := NewScorer(embedder, config.DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestScoreAndRank_WeightedSignals(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"jd text": {1, 0},
		"strong":  {1, 0},
		"weak":    {0, 1},
	}}
	s := newTestScorer(t, embedder)

	jd := JDProfile{
		Skills: []string{"aws", "python"},
		Title:  "software engineer",
		Years:  5,
	}
	candidates := []types.ResumeRecord{
		{ID: "weak-fit", Text: "weak", Metadata: types.ResumeMetadata{
			Skills: []string{"cooking"}, Titles: []string{"chef"}, Years: 1,
		}},
		{ID: "strong-fit", Text: "strong", Metadata: types.ResumeMetadata{
			Skills: []string{"python"}, Titles: []string{"software engineer"}, Years: 10,
		}},
	}

	report, err := s.ScoreAndRank(context.Background(), "jd text", jd, candidates)
	require.NoError(t, err)
	require.Len(t, report.Ranked, 2)
	assert.Empty(t, report.Defects)

	top := report.Ranked[0]
	assert.Equal(t, "strong-fit", top.ResumeID)

	// 0.55*1.0 + 0.25*(1/2) + 0.15*1.0 + 0.05*1.0
	assert.InDelta(t, 0.875, top.Score, 1e-9)
	assert.InDelta(t, 1.0, top.Breakdown.Semantic, 1e-9)
	assert.InDelta(t, 0.5, top.Breakdown.SkillOverlap, 1e-9)
	assert.InDelta(t, 1.0, top.Breakdown.Title, 1e-9)
	assert.InDelta(t, 1.0, top.Breakdown.Experience, 1e-9)
	assert.Equal(t, []string{"python"}, top.SkillsMatched)
	assert.Equal(t, 10, top.Years)
	assert.NotEmpty(t, top.Why)
	assert.LessOrEqual(t, len(top.Why), 3)

	// 排序非递增
	for i := 1; i < len(report.Ranked); i++ {
		assert.LessOrEqual(t, report.Ranked[i].Score, report.Ranked[i-1].Score)
	}
}

func TestScoreAndRank_StableOnTies(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"jd text": {1, 0},
		"same-a":  {0, 1},
		"same-b":  {0, 1},
	}}
	s := newTestScorer(t, embedder)

	candidates := []types.ResumeRecord{
		{ID: "first", Text: "same-a"},
		{ID: "second", Text: "same-b"},
	}
	report, err := s.ScoreAndRank(context.Background(), "jd text", JDProfile{}, candidates)
	require.NoError(t, err)
	require.Len(t, report.Ranked, 2)

	assert.Equal(t, report.Ranked[0].Score, report.Ranked[1].Score)
	assert.Equal(t, "first", report.Ranked[0].ResumeID, "同分候选保持输入顺序")
	assert.Equal(t, "second", report.Ranked[1].ResumeID)
}

func TestScoreAndRank_EmptyJD(t *testing.T) {
	s := newTestScorer(t, &stubEmbedder{})

	_, err := s.ScoreAndRank(context.Background(), "   ", JDProfile{}, nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidationFailure))
}

func TestScoreAndRank_JDEmbeddingFailureIsHard(t *testing.T) {
	embedder := &stubEmbedder{fail: map[string]bool{"jd text": true}}
	s := newTestScorer(t, embedder)

	_, err := s.ScoreAndRank(context.Background(), "jd text", JDProfile{}, nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindEmbeddingFailure))
}

func TestScoreAndRank_CandidateFailureIsolated(t *testing.T) {
	embedder := &stubEmbedder{
		vectors: map[string][]float64{
			"jd text": {1, 0},
			"good":    {1, 0},
		},
		fail: map[string]bool{"broken": true},
	}
	s := newTestScorer(t, embedder)

	candidates := []types.ResumeRecord{
		{ID: "bad", Text: "broken"},
		{ID: "ok", Text: "good"},
	}
	report, err := s.ScoreAndRank(context.Background(), "jd text", JDProfile{}, candidates)
	require.NoError(t, err)

	// 单个候选人失败计入Defects，不影响其余候选
	require.Len(t, report.Ranked, 1)
	assert.Equal(t, "ok", report.Ranked[0].ResumeID)
	require.Len(t, report.Defects, 1)
	assert.Equal(t, "bad", report.Defects[0].ResumeID)
	assert.Contains(t, report.Defects[0].Reason, "向量化失败")
}

func TestScoreAndRank_ZeroJDYears(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"jd text": {1, 0},
		"cand":    {1, 0},
	}}
	s := newTestScorer(t, embedder)

	candidates := []types.ResumeRecord{
		{ID: "c1", Text: "cand", Metadata: types.ResumeMetadata{Years: 8, Titles: []string{"x"}, Skills: []string{"python"}}},
	}
	report, err := s.ScoreAndRank(context.Background(), "jd text", JDProfile{}, candidates)
	require.NoError(t, err)
	require.Len(t, report.Ranked, 1)

	// JD未声明年限时经验信号为0，不做除零
	assert.Zero(t, report.Ranked[0].Breakdown.Experience)
}

func TestProfileJD(t *testing.T) {
	profile := ProfileJD("Hiring Data Engineer, 4+ years with Spark and AWS")
	assert.Equal(t, []string{"aws", "spark"}, profile.Skills)
	assert.Equal(t, "data engineer", profile.Title)
	assert.Equal(t, 4, profile.Years)
}
