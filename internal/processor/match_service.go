// Package processor 把索引、打分器与评估器组合成面向请求的服务。
package processor

import (
	"context"
	"fmt"
	"strings"

	"resume-match-go/internal/agent"
	"resume-match-go/internal/grounded"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/scorer"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

const (
	// Analyze检索的候选池大小，打分后才截断到topK
	analyzeCandidatePool = 50

	defaultAnalyzeTopK = 10
	defaultSearchTopK  = 10
	defaultQueryTopK   = 20

	// 喂给LLM的上下文简历数
	promptContextLimit = 5
)

// MatchService 简历匹配的核心服务
type MatchService struct {
	index     *storage.ResumeIndex
	scorer    *scorer.Scorer
	evaluator *grounded.Evaluator
	llm       *agent.CompletionClient
	extractor *parser.DocumentExtractor
	archive   *storage.MinIO // 可为nil，归档是尽力而为
}

// NewMatchService 组装服务。archive传nil时跳过文档归档。
func NewMatchService(index *storage.ResumeIndex, sc *scorer.Scorer, evaluator *grounded.Evaluator, llm *agent.CompletionClient, extractor *parser.DocumentExtractor, archive *storage.MinIO) *MatchService {
	return &MatchService{
		index:     index,
		scorer:    sc,
		evaluator: evaluator,
		llm:       llm,
		extractor: extractor,
		archive:   archive,
	}
}

// Analyze 对JD做候选检索加多信号打分，返回排序结果。
// JD为空在任何索引或向量化工作之前就拒绝。
func (s *MatchService) Analyze(ctx context.Context, jdText string, topK int) (*types.ScoreReport, error) {
	jdText = strings.TrimSpace(jdText)
	if jdText == "" {
		return nil, types.Errorf(types.KindValidationFailure, "jd_text 不能为空")
	}
	if topK <= 0 {
		topK = defaultAnalyzeTopK
	}

	hits, err := s.index.Query(ctx, jdText, analyzeCandidatePool)
	if err != nil {
		return nil, fmt.Errorf("候选检索失败: %w", err)
	}

	candidates := make([]types.ResumeRecord, len(hits))
	for i, hit := range hits {
		candidates[i] = recordFromHit(hit)
	}

	report, err := s.scorer.ScoreAndRank(ctx, jdText, scorer.ProfileJD(jdText), candidates)
	if err != nil {
		return nil, err
	}
	if len(report.Ranked) > topK {
		report.Ranked = report.Ranked[:topK]
	}
	return report, nil
}

// UploadResult 上传并建索引的结果
type UploadResult struct {
	ResumeID string         `json:"resume_id"`
	Filename string         `json:"filename"`
	Fields   types.FieldSet `json:"fields"`
}

// UploadResume 提取上传文件的文本、抽取字段并写入索引。
// 原始文档归档到对象存储，归档失败只记日志。
func (s *MatchService) UploadResume(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	if filename == "" || len(data) == 0 {
		return nil, types.Errorf(types.KindValidationFailure, "文件名与内容不能为空")
	}

	text, err := s.extractor.ExtractFromBytes(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.Errorf(types.KindValidationFailure, "文件 %s 中未提取到文本", filename)
	}

	fields := parser.ExtractFields(text)
	meta := types.ResumeMetadata{
		Skills:   fields.Skills,
		Titles:   fields.Titles,
		Years:    fields.Years,
		Category: "uploaded",
		Filename: filename,
	}

	id, err := s.index.Upsert(ctx, filename, text, meta)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if _, archiveErr := s.archive.ArchiveDocumentBytes(ctx, filename, data, ""); archiveErr != nil {
			logger.Ctx(ctx).Warn().Err(archiveErr).Str("filename", filename).Msg("文档归档失败")
		}
	}

	return &UploadResult{ResumeID: id, Filename: filename, Fields: fields}, nil
}

// FindReferences 按查询文本检索相似简历
func (s *MatchService) FindReferences(ctx context.Context, query string, topK int) ([]storage.QueryHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.Errorf(types.KindValidationFailure, "query 不能为空")
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	return s.index.Query(ctx, query, topK)
}

// GroundedMatch 对单份简历跑三阶段证据评估。
// withReferences 为真时附带参考简历的共性模式分析。
func (s *MatchService) GroundedMatch(ctx context.Context, jdText, resumeText string, withReferences bool) (*types.GroundedReport, error) {
	jdText = strings.TrimSpace(jdText)
	resumeText = strings.TrimSpace(resumeText)
	if jdText == "" || resumeText == "" {
		return nil, types.Errorf(types.KindValidationFailure, "jd_text 与 resume_text 不能为空")
	}

	var references []types.ResumeRecord
	if withReferences {
		hits, err := s.index.Query(ctx, jdText, promptContextLimit)
		if err != nil {
			// 参考简历是增强项，检索失败不阻断评估
			logger.Ctx(ctx).Warn().Err(err).Msg("参考简历检索失败，继续无参考评估")
		} else {
			for _, hit := range hits {
				references = append(references, recordFromHit(hit))
			}
		}
	}

	return s.evaluator.Analyze(ctx, jdText, resumeText, references), nil
}

// SearchResult RAG简历检索的汇总输出
type SearchResult struct {
	Resumes  []ResumeHit              `json:"resumes"`
	Insights *grounded.InsightsReport `json:"rag_insights"`
	QueryJD  string                   `json:"query_jd"`
}

// ResumeHit 检索命中的一份简历，相似度换算为百分比
type ResumeHit struct {
	ID            string               `json:"id"`
	Text          string               `json:"text"`
	Metadata      types.ResumeMetadata `json:"metadata"`
	SimilarityPct float64              `json:"similarity_score"`
}

// SearchResumes 检索最匹配JD的简历并生成基于证据的检索洞察
func (s *MatchService) SearchResumes(ctx context.Context, jdText string, topK int) (*SearchResult, error) {
	jdText = strings.TrimSpace(jdText)
	if jdText == "" {
		return nil, types.Errorf(types.KindValidationFailure, "jd_text 不能为空")
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	hits, err := s.index.Query(ctx, jdText, topK)
	if err != nil {
		return nil, err
	}

	resumes := make([]ResumeHit, len(hits))
	topRecords := make([]types.ResumeRecord, 0, promptContextLimit)
	for i, hit := range hits {
		resumes[i] = ResumeHit{
			ID:            hit.ID,
			Text:          hit.Text,
			Metadata:      hit.Metadata,
			SimilarityPct: roundPct(hit.Similarity),
		}
		if i < promptContextLimit {
			topRecords = append(topRecords, recordFromHit(hit))
		}
	}

	insights := s.evaluator.SearchInsights(ctx, jdText, topRecords)

	return &SearchResult{
		Resumes:  resumes,
		Insights: insights,
		QueryJD:  preview(jdText, 200),
	}, nil
}

// PromptAnswer 自然语言查询的结果
type PromptAnswer struct {
	Prompt      string      `json:"prompt"`
	Answer      string      `json:"analysis"`
	ContextUsed int         `json:"context_used"`
	TopMatches  []ResumeHit `json:"top_matches"`
}

// QueryWithPrompt 用自由提示词查询简历库，LLM失败时返回降级回答
func (s *MatchService) QueryWithPrompt(ctx context.Context, prompt string, topK int) (*PromptAnswer, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, types.Errorf(types.KindValidationFailure, "prompt 不能为空")
	}
	if topK <= 0 {
		topK = defaultQueryTopK
	}

	hits, err := s.index.Query(ctx, prompt, topK)
	if err != nil {
		return nil, err
	}

	contexts := hits
	if len(contexts) > promptContextLimit {
		contexts = contexts[:promptContextLimit]
	}

	answer := ""
	if len(contexts) > 0 {
		answer = s.llm.Complete(ctx, promptQuerySystemMessage, buildPromptQuery(prompt, contexts), 0.7, 1000)
	}
	if answer == "" {
		answer = "No analysis available: the language model did not return a response."
	}

	matches := make([]ResumeHit, len(hits))
	for i, hit := range hits {
		matches[i] = ResumeHit{
			ID:            hit.ID,
			Text:          preview(hit.Text, 300),
			Metadata:      hit.Metadata,
			SimilarityPct: roundPct(hit.Similarity),
		}
	}

	return &PromptAnswer{
		Prompt:      prompt,
		Answer:      answer,
		ContextUsed: len(contexts),
		TopMatches:  matches,
	}, nil
}

const promptQuerySystemMessage = `You are an expert technical recruiter and resume analyst.
Analyze resumes and answer questions about candidates based on the provided resume data.
Be specific, cite evidence from resumes, and provide actionable insights.`

func buildPromptQuery(prompt string, contexts []storage.QueryHit) string {
	var sb strings.Builder
	for i, c := range contexts {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		skills := c.Metadata.Skills
		if len(skills) > 10 {
			skills = skills[:10]
		}
		sb.WriteString(fmt.Sprintf("Resume %d (Match Score: %.2f):\n", i+1, c.Similarity))
		sb.WriteString(fmt.Sprintf("Category: %s\n", orDefault(c.Metadata.Category, "N/A")))
		sb.WriteString(fmt.Sprintf("Skills: %s\n", strings.Join(skills, ", ")))
		sb.WriteString(fmt.Sprintf("Experience: %d years\n", c.Metadata.Years))
		sb.WriteString(fmt.Sprintf("Content Preview: %s...", preview(c.Text, 500)))
	}

	return fmt.Sprintf(`User Question: %s

Based on these candidate resumes from our database:

%s

Provide a comprehensive answer that:
1. Directly answers the question
2. Cites specific examples from the resumes
3. Ranks or recommends candidates if applicable
4. Explains your reasoning`, prompt, sb.String())
}

// Count 当前索引中的简历数
func (s *MatchService) Count(ctx context.Context) (int64, error) {
	return s.index.Count(ctx)
}

func recordFromHit(hit storage.QueryHit) types.ResumeRecord {
	return types.ResumeRecord{ID: hit.ID, Text: hit.Text, Metadata: hit.Metadata}
}

func roundPct(similarity float64) float64 {
	return float64(int(similarity*1000+0.5)) / 10
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
