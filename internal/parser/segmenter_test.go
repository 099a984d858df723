package parser

import (
	"testing"

	"resume-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentJD(t *testing.T) {
	jd := `SENIOR BACKEND ENGINEER

We are looking for an experienced backend engineer to join our platform team.

Requirements:
- 5+ years of experience with Python and Django
- Experience with AWS cloud infrastructure
Strong SQL and PostgreSQL skills`

	segments := SegmentJD(jd)
	require.Len(t, segments, 5)

	// 编号连续，被丢弃的短片段("Requirements:")不占用编号
	assert.Equal(t, "JD#1", segments[0].ID)
	assert.Equal(t, "SENIOR BACKEND ENGINEER", segments[0].Text)
	assert.Equal(t, "JD#2", segments[1].ID)
	assert.Contains(t, segments[1].Text, "experienced backend engineer")
	assert.Equal(t, "JD#3", segments[2].ID)
	assert.Equal(t, "5+ years of experience with Python and Django", segments[2].Text)
	assert.Equal(t, "JD#4", segments[3].ID)
	assert.Equal(t, "Experience with AWS cloud infrastructure", segments[3].Text)
	assert.Equal(t, "JD#5", segments[4].ID)

	for _, seg := range segments {
		assert.Equal(t, types.SourceJD, seg.Kind)
	}
}

func TestSegmentJD_Deterministic(t *testing.T) {
	jd := "We need a senior engineer.\n\n- Python required\n- 3+ years with Kubernetes required"
	first := SegmentJD(jd)
	second := SegmentJD(jd)
	assert.Equal(t, first, second, "同样的输入必须产出同样的片段")
}

func TestSegmentResume(t *testing.T) {
	resume := `John Smith
Senior Software Engineer

Experience:
- Built data pipeline processing 2M events daily using Kafka
- Led migration to Kubernetes across 12 services

Education:
B.Tech in Computer Science, Pune University`

	segments := SegmentResume(resume)
	require.Len(t, segments, 4)

	assert.Equal(t, "R#1", segments[0].ID)
	assert.Equal(t, "John Smith Senior Software Engineer", segments[0].Text)
	assert.Equal(t, "R#2", segments[1].ID)
	assert.Equal(t, "Built data pipeline processing 2M events daily using Kafka", segments[1].Text)
	assert.Equal(t, "R#3", segments[2].ID)
	assert.Equal(t, "Led migration to Kubernetes across 12 services", segments[2].Text)
	// 小节标题与正文归并成一个片段
	assert.Equal(t, "R#4", segments[3].ID)
	assert.Contains(t, segments[3].Text, "B.Tech in Computer Science")

	for _, seg := range segments {
		assert.Equal(t, types.SourceResume, seg.Kind)
	}
}

func TestSegmentResume_DropsShortSegments(t *testing.T) {
	segments := SegmentResume("Skills:\n\nOK\n\nhi")
	assert.Empty(t, segments, "低于长度阈值的片段应该被丢弃")
}

func TestSegmentReferences(t *testing.T) {
	references := []types.ResumeRecord{
		{
			ID: "ref-1",
			Text: `Data Engineer
- Built streaming platform handling 40TB of data per day
- Wrote documentation
- Improved query latency by 60% across the analytics stack`,
		},
		{
			ID: "ref-2",
			Text: `Backend Developer
- Scaled payment service to 10000 requests per second peak`,
		},
	}

	segments := SegmentReferences(references, 3, 20)
	require.Len(t, segments, 3)

	// 只保留带数字且足够长的列表行
	assert.Equal(t, "REF#1", segments[0].ID)
	assert.Equal(t, "Built streaming platform handling 40TB of data per day", segments[0].Text)
	assert.Equal(t, 0, segments[0].SourceIdx)
	assert.Equal(t, "REF#2", segments[1].ID)
	assert.Contains(t, segments[1].Text, "query latency by 60%")
	assert.Equal(t, "REF#3", segments[2].ID)
	assert.Equal(t, 1, segments[2].SourceIdx)

	for _, seg := range segments {
		assert.Equal(t, types.SourceReference, seg.Kind)
	}
}

func TestSegmentReferences_RespectsCapAndTopN(t *testing.T) {
	bullet := "- Delivered feature used by 5000 customers in production"
	many := types.ResumeRecord{Text: bullet + "\n" + bullet + "\n" + bullet}

	segments := SegmentReferences([]types.ResumeRecord{many, many}, 2, 4)
	assert.Len(t, segments, 4, "片段总量不应超过上限")

	// topN截断: 第二份简历不应被处理
	segments = SegmentReferences([]types.ResumeRecord{many, many}, 1, 20)
	assert.Len(t, segments, 3)
	for _, seg := range segments {
		assert.Equal(t, 0, seg.SourceIdx)
	}
}

func TestFindCandidateSegments(t *testing.T) {
	segments := []types.EvidenceSegment{
		{ID: "R#1", Text: "Objective: seeking new opportunities"},
		{ID: "R#2", Text: "5 years of Python development experience at Acme"},
		{ID: "R#3", Text: "Managed AWS infrastructure with Terraform"},
		{ID: "R#4", Text: "Python scripting for deployment automation"},
	}

	got := FindCandidateSegments("3+ years of Python experience", segments, 3)
	require.NotEmpty(t, got)

	// 关键词重叠最多的片段排第一
	assert.Equal(t, "R#2", got[0].ID)
	for _, seg := range got {
		assert.NotEqual(t, "R#1", seg.ID, "零分片段应该被排除")
		assert.NotEqual(t, "R#3", seg.ID)
	}
}

func TestFindCandidateSegments_StableOnTies(t *testing.T) {
	segments := []types.EvidenceSegment{
		{ID: "R#1", Text: "worked with kubernetes clusters daily"},
		{ID: "R#2", Text: "deployed kubernetes operators in production"},
	}

	got := FindCandidateSegments("kubernetes", segments, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "R#1", got[0].ID, "同分片段保持原有顺序")
	assert.Equal(t, "R#2", got[1].ID)
}

func TestFindCandidateSegments_MultibytePhrase(t *testing.T) {
	// 中文要求没有ASCII关键词，只能靠短语加分命中；
	// 短语前缀必须按rune截取，按字节截会切断多字节字符导致永远不匹配
	segments := []types.EvidenceSegment{
		{ID: "R#1", Text: "精通分布式系统架构设计，支撑日均千万级请求"},
		{ID: "R#2", Text: "熟悉前端组件库开发"},
	}

	got := FindCandidateSegments("精通分布式系统架构设计", segments, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "R#1", got[0].ID)

	// 超过20个rune的要求取前20个rune做短语
	long := FindCandidateSegments("负责高并发微服务网关的设计与实现并主导性能优化", []types.EvidenceSegment{
		{ID: "R#3", Text: "负责高并发微服务网关的设计与实现并主导性能调优工作"},
	}, 3)
	require.Len(t, long, 1)
	assert.Equal(t, "R#3", long[0].ID)
}

func TestFindCandidateSegments_TopKLimit(t *testing.T) {
	segments := []types.EvidenceSegment{
		{ID: "R#1", Text: "python developer"},
		{ID: "R#2", Text: "python engineer"},
		{ID: "R#3", Text: "python analyst"},
	}
	got := FindCandidateSegments("python", segments, 2)
	assert.Len(t, got, 2)
}
