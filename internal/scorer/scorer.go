// Package scorer 实现多信号简历打分: 语义相似度、技能重合、职位匹配与年限适配
// 按固定权重加权，产出可解释的排序结果。
package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var scorerTracer = otel.Tracer("resume-match-go/internal/scorer")

// TextEmbedder 打分器需要的最小嵌入能力。返回的向量必须已归一化。
type TextEmbedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
}

// JDProfile JD侧的打分输入
type JDProfile struct {
	Skills []string `json:"skills"`
	Title  string   `json:"title"`
	Years  int      `json:"years"`
}

// ProfileJD 从JD文本中确定性地提取打分所需字段
func ProfileJD(jdText string) JDProfile {
	return JDProfile{
		Skills: parser.ExtractSkills(jdText),
		Title:  parser.InferJDTitle(jdText),
		Years:  parser.ExtractYears(jdText),
	}
}

// Scorer 多信号打分器
type Scorer struct {
	embedder TextEmbedder

	vecWeight   float64
	kwWeight    float64
	titleWeight float64
	yrsWeight   float64
}

// NewScorer 创建打分器，权重来自配置并校验归一性
func NewScorer(embedder TextEmbedder, cfg *config.Config) (*Scorer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder不能为空")
	}
	vec, kw, title, yrs, err := cfg.ScorerWeights()
	if err != nil {
		return nil, err
	}
	return &Scorer{
		embedder:    embedder,
		vecWeight:   vec,
		kwWeight:    kw,
		titleWeight: title,
		yrsWeight:   yrs,
	}, nil
}

// ScoreAndRank 对候选简历打分排序。
// JD只嵌入一次，嵌入失败是硬错误；单个候选人嵌入失败记入Defects并继续。
// 总分四信号加权、保留三位小数，同分候选保持输入顺序。
func (s *Scorer) ScoreAndRank(ctx context.Context, jdText string, jd JDProfile, candidates []types.ResumeRecord) (*types.ScoreReport, error) {
	ctx, span := scorerTracer.Start(ctx, "scorer.ScoreAndRank",
		trace.WithAttributes(
			attribute.Int("candidates.count", len(candidates)),
			attribute.String("jd.title", jd.Title),
		))
	defer span.End()

	if strings.TrimSpace(jdText) == "" {
		err := types.Errorf(types.KindValidationFailure, "JD文本不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	jdVectors, err := s.embedder.EmbedStrings(ctx, []string{jdText})
	if err != nil {
		wrapped := types.NewError(types.KindEmbeddingFailure, "JD向量化失败", err)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeEmbedding)
		return nil, wrapped
	}
	if len(jdVectors) != 1 {
		return nil, types.Errorf(types.KindEmbeddingFailure, "JD向量化返回 %d 个向量, 期望1个", len(jdVectors))
	}
	jdVec := jdVectors[0]

	jdSkills := make(map[string]struct{}, len(jd.Skills))
	for _, sk := range jd.Skills {
		jdSkills[sk] = struct{}{}
	}

	report := &types.ScoreReport{}

	for _, c := range candidates {
		vectors, err := s.embedder.EmbedStrings(ctx, []string{c.Text})
		if err != nil || len(vectors) != 1 {
			reason := "简历向量化失败"
			if err != nil {
				reason = fmt.Sprintf("简历向量化失败: %v", err)
			}
			report.Defects = append(report.Defects, types.ScoreDefect{ResumeID: c.ID, Reason: reason})
			continue
		}

		ranked := s.scoreOne(jdVec, jd, jdSkills, c, vectors[0])
		report.Ranked = append(report.Ranked, ranked)
	}

	sort.SliceStable(report.Ranked, func(i, j int) bool {
		return report.Ranked[i].Score > report.Ranked[j].Score
	})

	span.SetAttributes(
		attribute.Int("ranked.count", len(report.Ranked)),
		attribute.Int("defects.count", len(report.Defects)),
	)
	return report, nil
}

func (s *Scorer) scoreOne(jdVec []float64, jd JDProfile, jdSkills map[string]struct{}, c types.ResumeRecord, resumeVec []float64) types.RankedCandidate {
	skills := c.Metadata.Skills
	titles := c.Metadata.Titles
	years := c.Metadata.Years
	if len(skills) == 0 && len(titles) == 0 && years == 0 {
		// 元数据缺失时退回文本抽取
		fields := parser.ExtractFields(c.Text)
		skills, titles, years = fields.Skills, fields.Titles, fields.Years
	}

	// 向量已归一化，点积即余弦相似度
	sVec := dot(jdVec, resumeVec)

	var overlap []string
	for _, sk := range skills {
		if _, ok := jdSkills[sk]; ok {
			overlap = append(overlap, sk)
		}
	}
	sort.Strings(overlap)

	sKw := 0.0
	if len(jdSkills) > 0 {
		sKw = float64(len(overlap)) / math.Max(1, float64(len(jdSkills)))
	}

	sTitle := 0.0
	for _, t := range titles {
		if r := float64(fuzzy.TokenSetRatio(jd.Title, t)) / 100.0; r > sTitle {
			sTitle = r
		}
	}

	sYrs := 0.0
	if jd.Years > 0 {
		sYrs = float64(min(years, jd.Years)) / float64(jd.Years)
	}

	final := s.vecWeight*sVec + s.kwWeight*sKw + s.titleWeight*sTitle + s.yrsWeight*sYrs

	var why []string
	if sVec > 0.7 {
		why = append(why, "High semantic match")
	}
	if len(overlap) > 0 {
		why = append(why, "Skills overlap: "+strings.Join(capStrings(overlap, 5), ", "))
	}
	if sTitle > 0.6 {
		why = append(why, "Title closely matches JD")
	}
	if sYrs > 0 {
		why = append(why, fmt.Sprintf("Experience aligns (%d yrs)", years))
	}
	if len(why) > 3 {
		why = why[:3]
	}

	return types.RankedCandidate{
		ResumeID: c.ID,
		Score:    round3(final),
		Breakdown: types.SignalBreakdown{
			Semantic:     sVec,
			SkillOverlap: sKw,
			Title:        sTitle,
			Experience:   sYrs,
		},
		Why:           why,
		SkillsMatched: capStrings(overlap, 10),
		Years:         years,
	}
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func capStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
