package grounded

import (
	"encoding/json"
	"fmt"
	"strings"

	"resume-match-go/internal/types"
)

// systemPrompt 约束模型只使用提供的证据片段并输出合法JSON
const systemPrompt = `You are an evidence-grounded resume/JD analyst.
Use ONLY the provided JD# / R# / REF# snippets as evidence.
Do NOT infer requirements that aren't explicitly stated.
Do NOT invent skills, tools, or requirements.
Return valid JSON only matching the schema provided.
Keep quotes short (<= 25 words).`

func buildStage1Prompt(jdSegments []types.EvidenceSegment) string {
	return fmt.Sprintf(`Extract job requirements from this JD. Use ONLY explicit statements from the JD segments below.

JD SEGMENTS:
%s

Extract requirements in this EXACT JSON format:
{
  "jd_requirements": [
    {
      "requirement": "short requirement text",
      "type": "must" | "preferred" | "nice",
      "category": "skills" | "experience" | "education" | "tools" | "responsibilities",
      "jd_evidence": [{"id": "JD#N", "quote": "exact quote <= 25 words"}]
    }
  ]
}

RULES:
- type="must": Look for "required", "must have", "essential"
- type="preferred": Look for "preferred", "nice to have", "plus"
- type="nice": Everything else
- Quote EXACTLY from JD segments (no paraphrasing)
- If JD says "Python experience", write requirement="Python programming"
- If JD says "5+ years", write requirement="5+ years experience" with that evidence
- Do NOT add requirements not explicitly in the JD
- Return JSON only, no markdown`, formatSegments(jdSegments))
}

func buildStage2Prompt(req types.Requirement, facts types.ResumeFacts, candidates []types.EvidenceSegment) string {
	jdEvidence, _ := json.Marshal(req.JDEvidence)

	return fmt.Sprintf(`Evaluate if this requirement is met in the resume.

REQUIREMENT: %s
JD EVIDENCE: %s

%s

CANDIDATE RESUME SEGMENTS:
%s

Return JSON in this EXACT format:
{
  "status": "met" | "partial" | "missing",
  "confidence": 0.0,
  "resume_evidence": [{"id": "R#N", "quote": "exact quote <= 25 words"}],
  "notes": "why you marked it this way (1 sentence)"
}

RULES:
- status="met": Clear evidence in resume segments or facts
- status="partial": Some evidence but incomplete
- status="missing": No evidence found
- confidence: 0.8-1.0 for met, 0.4-0.7 for partial, 0.0-0.4 for missing
- Quote EXACTLY from R# segments
- Check resume facts first (education, years)
- If requirement is "Bachelor's degree" and facts show "B.Tech", status="met"
- If requirement is "5 years" and facts show "~6 years", status="met"
- Do NOT claim missing if evidence exists
- Return JSON only`, req.Text, string(jdEvidence), formatFactsContext(facts), formatSegments(candidates))
}

func buildStage3Prompt(refSegments []types.EvidenceSegment, maxPatterns int) string {
	if len(refSegments) > 15 {
		refSegments = refSegments[:15]
	}
	var sb strings.Builder
	for i, seg := range refSegments {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %.100s...", seg.ID, seg.Text))
	}

	return fmt.Sprintf(`Analyze these snippets from top matching resumes and identify 3-%d common patterns.

REFERENCE SNIPPETS:
%s

Return JSON in this EXACT format:
{
  "common_patterns_in_top_matches": [
    {
      "pattern": "description (e.g., 'Many top resumes mention cloud platforms')",
      "reference_evidence": [{"id": "REF#N", "quote": "exact quote <= 25 words"}]
    }
  ]
}

RULES:
- Identify what's COMMON across multiple references
- Do NOT list every skill - focus on patterns
- Quote from REF# segments only
- Limit to %d patterns max
- Return JSON only`, maxPatterns, sb.String(), maxPatterns)
}

// formatFactsContext 把确定性抽取的简历事实拼成提示词中的上下文块
func formatFactsContext(facts types.ResumeFacts) string {
	education := "None detected"
	if len(facts.Education) > 0 {
		var entries []string
		for _, e := range facts.Education {
			entries = append(entries, strings.TrimSpace(e.Degree+" "+e.Field))
		}
		education = strings.Join(entries, ", ")
	}

	ranges := "None detected"
	if len(facts.Ranges) > 0 {
		var entries []string
		for _, r := range facts.Ranges {
			entries = append(entries, r.Start+"-"+r.End)
		}
		ranges = strings.Join(entries, ", ")
	}

	return fmt.Sprintf(`RESUME FACTS (extracted deterministically):
- Education: %s
- Total Experience: ~%.1f years
- Experience Ranges: %s`, education, facts.TotalYears, ranges)
}

func formatSegments(segments []types.EvidenceSegment) string {
	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(seg.ID)
		sb.WriteString(": ")
		sb.WriteString(seg.Text)
	}
	return sb.String()
}
