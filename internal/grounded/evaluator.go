// Package grounded 实现三阶段证据驱动的简历/JD评估:
// 阶段一从JD片段抽取要求，阶段二逐条对照简历片段与确定性事实评估，
// 阶段三从参考简历中归纳共性模式。所有引用都会对照片段原文校验。
package grounded

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-match-go/internal/agent"
	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var evaluatorTracer = otel.Tracer("resume-match-go/internal/grounded")

const (
	stage2MaxTokens   = 500
	stage3MaxTokens   = 800
	stage3Temperature = 0.3

	noCandidateNote = "No relevant resume segments found for this requirement"
)

// Evaluator 三阶段评估器。任一阶段失败都不会返回错误，
// 只会让该阶段的产出为空并在warnings里留下诊断信息。
type Evaluator struct {
	llm *agent.CompletionClient
	cfg config.EvaluatorConfig

	// 解析 Present/Current 用的年份，0表示取当前时间
	year int
}

// Option 评估器的可选配置
type Option func(*Evaluator)

// WithCurrentYear 固定事实抽取使用的年份，测试用
func WithCurrentYear(year int) Option {
	return func(e *Evaluator) {
		e.year = year
	}
}

// NewEvaluator 创建评估器
func NewEvaluator(llm *agent.CompletionClient, cfg config.EvaluatorConfig, opts ...Option) *Evaluator {
	e := &Evaluator{llm: llm, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) currentYear() int {
	if e.year > 0 {
		return e.year
	}
	return time.Now().Year()
}

// stage1Result 阶段一的响应结构
type stage1Result struct {
	JDRequirements []types.Requirement `json:"jd_requirements"`
}

// ExtractRequirements 阶段一: 只从JD片段中抽取岗位要求。
// JD过短或要点过少的启发式警告总会给出，与LLM结果无关。
// 解析失败时返回空要求列表和一条诊断警告，不返回错误。
func (e *Evaluator) ExtractRequirements(ctx context.Context, jdText string, jdSegments []types.EvidenceSegment) ([]types.Requirement, []string) {
	ctx, span := evaluatorTracer.Start(ctx, "grounded.ExtractRequirements",
		trace.WithAttributes(attribute.Int("jd.segments", len(jdSegments))))
	defer span.End()

	var warnings []string
	if len(jdText) < 400 {
		warnings = append(warnings, "JD text seems short (< 400 chars). Paste full responsibilities + requirements for better analysis.")
	}
	bulletCount := strings.Count(jdText, "\n-") + strings.Count(jdText, "\n•") + strings.Count(jdText, "\n*")
	if bulletCount < 5 {
		warnings = append(warnings, "JD has few bullet points (< 5). More detailed JDs produce better matches.")
	}

	response := e.llm.Complete(ctx, systemPrompt, buildStage1Prompt(jdSegments), float32(e.cfg.Temperature), e.cfg.MaxTokens)
	if response == "" {
		warnings = append(warnings, "Failed to parse JD requirements: empty model response")
		return nil, warnings
	}

	var result stage1Result
	if err := decodeModelJSON(response, &result); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("阶段一JSON解析失败")
		warnings = append(warnings, fmt.Sprintf("Failed to parse JD requirements: %v", err))
		return nil, warnings
	}

	// 引用完整性: 引文必须逐字出现在被引片段中，违规引用直接丢弃
	segTexts := segmentTexts(jdSegments)
	requirements := result.JDRequirements
	for i := range requirements {
		kept, dropped := verifyCitations(requirements[i].JDEvidence, segTexts)
		if dropped > 0 {
			warnings = append(warnings, fmt.Sprintf("Requirement %q cited text not found verbatim in JD segments (%d citation(s) dropped)", requirements[i].Text, dropped))
		}
		requirements[i].JDEvidence = kept
		if requirements[i].Type != types.RequirementMust &&
			requirements[i].Type != types.RequirementPreferred &&
			requirements[i].Type != types.RequirementNice {
			requirements[i].Type = types.RequirementNice
		}
	}

	span.SetAttributes(attribute.Int("requirements.count", len(requirements)))
	return requirements, warnings
}

// EvaluateMatch 阶段二: 逐条评估要求是否被简历满足。
// 最多取前 MaxRequirements 条；没有候选片段的要求直接判 missing/0.3，
// 不发起LLM调用。Parallelism>1 时并行评估，结果仍按要求顺序排列。
func (e *Evaluator) EvaluateMatch(ctx context.Context, requirements []types.Requirement, resumeSegments []types.EvidenceSegment, facts types.ResumeFacts) []types.MatchEvaluation {
	ctx, span := evaluatorTracer.Start(ctx, "grounded.EvaluateMatch",
		trace.WithAttributes(
			attribute.Int("requirements.count", len(requirements)),
			attribute.Int("resume.segments", len(resumeSegments)),
		))
	defer span.End()

	maxReqs := e.cfg.MaxRequirements
	if maxReqs <= 0 {
		maxReqs = 15
	}
	if len(requirements) > maxReqs {
		requirements = requirements[:maxReqs]
	}

	segTexts := segmentTexts(resumeSegments)
	evaluations := make([]types.MatchEvaluation, len(requirements))

	if e.cfg.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Parallelism)
		for i := range requirements {
			g.Go(func() error {
				evaluations[i] = e.evaluateOne(gctx, requirements[i], resumeSegments, segTexts, facts)
				return nil
			})
		}
		// evaluateOne 从不返回错误，Wait只用来等待全部完成
		_ = g.Wait()
	} else {
		for i := range requirements {
			evaluations[i] = e.evaluateOne(ctx, requirements[i], resumeSegments, segTexts, facts)
		}
	}

	return evaluations
}

// stage2Result 阶段二单条要求的响应结构
type stage2Result struct {
	Status         types.MatchStatus `json:"status"`
	Confidence     float64           `json:"confidence"`
	ResumeEvidence []types.Citation  `json:"resume_evidence"`
	Notes          string            `json:"notes"`
}

func (e *Evaluator) evaluateOne(ctx context.Context, req types.Requirement, resumeSegments []types.EvidenceSegment, segTexts map[string]string, facts types.ResumeFacts) types.MatchEvaluation {
	topK := e.cfg.CandidateSegments
	if topK <= 0 {
		topK = 5
	}
	candidates := parser.FindCandidateSegments(req.Text, resumeSegments, topK)

	if len(candidates) == 0 {
		return e.applyFactOverride(req, types.MatchEvaluation{
			Requirement:    req.Text,
			Status:         types.StatusMissing,
			Confidence:     0.3,
			JDEvidence:     req.JDEvidence,
			ResumeEvidence: []types.Citation{},
			Notes:          noCandidateNote,
		}, facts)
	}

	fallback := func(reason string) types.MatchEvaluation {
		return e.applyFactOverride(req, types.MatchEvaluation{
			Requirement:    req.Text,
			Status:         types.StatusMissing,
			Confidence:     0.3,
			JDEvidence:     req.JDEvidence,
			ResumeEvidence: []types.Citation{},
			Notes:          "Evaluation error: " + reason,
		}, facts)
	}

	response := e.llm.Complete(ctx, systemPrompt, buildStage2Prompt(req, facts, candidates), float32(e.cfg.Temperature), stage2MaxTokens)
	if response == "" {
		return fallback("empty model response")
	}

	var result stage2Result
	if err := decodeModelJSON(response, &result); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("requirement", req.Text).Msg("阶段二JSON解析失败")
		return fallback(err.Error())
	}

	status := result.Status
	if status != types.StatusMet && status != types.StatusPartial && status != types.StatusMissing {
		status = types.StatusMissing
	}

	evidence, _ := verifyCitations(result.ResumeEvidence, segTexts)

	eval := types.MatchEvaluation{
		Requirement:    req.Text,
		Status:         status,
		Confidence:     clampConfidence(status, result.Confidence),
		JDEvidence:     req.JDEvidence,
		ResumeEvidence: evidence,
		Notes:          result.Notes,
	}
	return e.applyFactOverride(req, eval, facts)
}

// applyFactOverride 用确定性事实纠正经验类要求的结论:
// 要求里声明的最低年限 <= 事实年限之和时，直接判 met。
func (e *Evaluator) applyFactOverride(req types.Requirement, eval types.MatchEvaluation, facts types.ResumeFacts) types.MatchEvaluation {
	if req.Category != types.CategoryExperience || eval.Status == types.StatusMet {
		return eval
	}
	required := parser.ExtractYears(req.Text)
	if required <= 0 || facts.TotalYears < float64(required) {
		return eval
	}

	eval.Status = types.StatusMet
	eval.Confidence = clampConfidence(types.StatusMet, eval.Confidence)
	eval.Notes = fmt.Sprintf("Experience ranges sum to ~%.1f years, covering the stated %d year minimum", facts.TotalYears, required)
	return eval
}

// clampConfidence 把置信度收敛到状态对应的区间:
// met [0.8,1.0], partial [0.4,0.7], missing [0.0,0.4]
func clampConfidence(status types.MatchStatus, confidence float64) float64 {
	var lo, hi float64
	switch status {
	case types.StatusMet:
		lo, hi = 0.8, 1.0
	case types.StatusPartial:
		lo, hi = 0.4, 0.7
	default:
		lo, hi = 0.0, 0.4
	}
	if confidence < lo {
		return lo
	}
	if confidence > hi {
		return hi
	}
	return confidence
}

// stage3Result 阶段三的响应结构
type stage3Result struct {
	Patterns []types.ReferencePattern `json:"common_patterns_in_top_matches"`
}

// ExtractPatterns 阶段三: 从参考简历片段中归纳共性模式。
// 没有参考片段或解析失败都返回空列表。
func (e *Evaluator) ExtractPatterns(ctx context.Context, refSegments []types.EvidenceSegment) []types.ReferencePattern {
	if len(refSegments) == 0 {
		return nil
	}

	ctx, span := evaluatorTracer.Start(ctx, "grounded.ExtractPatterns",
		trace.WithAttributes(attribute.Int("reference.segments", len(refSegments))))
	defer span.End()

	maxPatterns := e.cfg.MaxPatterns
	if maxPatterns <= 0 {
		maxPatterns = 5
	}

	response := e.llm.Complete(ctx, systemPrompt, buildStage3Prompt(refSegments, maxPatterns), stage3Temperature, stage3MaxTokens)
	if response == "" {
		return nil
	}

	var result stage3Result
	if err := decodeModelJSON(response, &result); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("阶段三JSON解析失败")
		return nil
	}

	segTexts := segmentTexts(refSegments)
	patterns := result.Patterns
	if len(patterns) > maxPatterns {
		patterns = patterns[:maxPatterns]
	}
	for i := range patterns {
		patterns[i].Evidence, _ = verifyCitations(patterns[i].Evidence, segTexts)
	}
	return patterns
}

// Analyze 运行完整管线: 切分 → 事实抽取 → 三个阶段，
// 无论各阶段是否降级都返回一份带切分统计的报告。
func (e *Evaluator) Analyze(ctx context.Context, jdText, resumeText string, references []types.ResumeRecord) *types.GroundedReport {
	ctx, span := evaluatorTracer.Start(ctx, "grounded.Analyze")
	defer span.End()

	jdSegments := parser.SegmentJD(jdText)
	resumeSegments := parser.SegmentResume(resumeText)
	facts := parser.ExtractResumeFacts(resumeText, e.currentYear())
	refSegments := parser.SegmentReferences(references, 3, e.cfg.ReferenceSegmentCap)

	requirements, warnings := e.ExtractRequirements(ctx, jdText, jdSegments)
	evaluations := e.EvaluateMatch(ctx, requirements, resumeSegments, facts)
	patterns := e.ExtractPatterns(ctx, refSegments)

	return &types.GroundedReport{
		Requirements: requirements,
		Evaluations:  evaluations,
		Patterns:     patterns,
		Warnings:     warnings,
		Facts:        facts,
		Coverage:     coverage(evaluations),
		Meta: types.ReportMeta{
			JDSegments:        len(jdSegments),
			ResumeSegments:    len(resumeSegments),
			ReferenceSegments: len(refSegments),
		},
	}
}

// InsightsReport 检索页的轻量分析: 只有JD要求与参考模式，没有逐条评估
type InsightsReport struct {
	Requirements []types.Requirement      `json:"requirements"`
	Patterns     []types.ReferencePattern `json:"reference_patterns,omitempty"`
	Warnings     []string                 `json:"warnings,omitempty"`
	MatchSummary string                   `json:"match_summary"`
	Meta         types.ReportMeta         `json:"meta"`
}

// SearchInsights 为"找出最匹配简历"场景生成分析: 阶段一 + 阶段三
func (e *Evaluator) SearchInsights(ctx context.Context, jdText string, topResumes []types.ResumeRecord) *InsightsReport {
	ctx, span := evaluatorTracer.Start(ctx, "grounded.SearchInsights")
	defer span.End()

	jdSegments := parser.SegmentJD(jdText)
	refSegments := parser.SegmentReferences(topResumes, 5, e.cfg.ReferenceSegmentCap)

	requirements, warnings := e.ExtractRequirements(ctx, jdText, jdSegments)
	patterns := e.ExtractPatterns(ctx, refSegments)

	return &InsightsReport{
		Requirements: requirements,
		Patterns:     patterns,
		Warnings:     warnings,
		MatchSummary: fmt.Sprintf("Found %d matching resumes based on semantic similarity.", len(topResumes)),
		Meta: types.ReportMeta{
			JDSegments:        len(jdSegments),
			ReferenceSegments: len(refSegments),
		},
	}
}

// coverage 计算met要求的占比，与加权打分是两个独立口径
func coverage(evaluations []types.MatchEvaluation) float64 {
	if len(evaluations) == 0 {
		return 0
	}
	met := 0
	for _, eval := range evaluations {
		if eval.Status == types.StatusMet {
			met++
		}
	}
	return float64(met) / float64(len(evaluations))
}

// segmentTexts 建立片段ID到原文的索引
func segmentTexts(segments []types.EvidenceSegment) map[string]string {
	m := make(map[string]string, len(segments))
	for _, seg := range segments {
		m[seg.ID] = seg.Text
	}
	return m
}

// verifyCitations 只保留引文逐字出现在被引片段中的引用
func verifyCitations(citations []types.Citation, segTexts map[string]string) ([]types.Citation, int) {
	kept := make([]types.Citation, 0, len(citations))
	dropped := 0
	for _, c := range citations {
		text, ok := segTexts[c.SegmentID]
		if !ok || c.Quote == "" || !strings.Contains(text, c.Quote) {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}
