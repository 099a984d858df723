package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"resume-match-go/internal/types"
)

// 切分规则全部是确定性的: 同样的输入永远得到同样的片段与编号。

var (
	numberedLineRe  = regexp.MustCompile(`^\d+[.)]`)
	bulletPrefixRe  = regexp.MustCompile(`^[-•*\d.)]+\s*`)
	refBulletRe     = regexp.MustCompile(`^[-•*]+\s*`)
	resumeHeaderRe  = regexp.MustCompile(`^[A-Z][^.!?]+:$`)
	keywordRe       = regexp.MustCompile(`\b[a-z]{3,}\b`)
	containsDigitRe = regexp.MustCompile(`\d`)
)

// SegmentJD 将JD文本切分为可引用片段，编号为 JD#1 起
func SegmentJD(jdText string) []types.EvidenceSegment {
	return segmentLines(jdText, types.SourceJD, "JD#", 20, func(line string) bool {
		return strings.HasPrefix(line, "-") ||
			strings.HasPrefix(line, "•") ||
			strings.HasPrefix(line, "*") ||
			numberedLineRe.MatchString(line) ||
			isUpperLine(line) ||
			(len(line) < 60 && strings.HasSuffix(line, ":"))
	})
}

// SegmentResume 将简历文本切分为可引用片段，编号为 R#1 起
func SegmentResume(resumeText string) []types.EvidenceSegment {
	return segmentLines(resumeText, types.SourceResume, "R#", 15, func(line string) bool {
		return strings.HasPrefix(line, "-") ||
			strings.HasPrefix(line, "•") ||
			strings.HasPrefix(line, "*") ||
			numberedLineRe.MatchString(line) ||
			(isUpperLine(line) && len(line) < 40) ||
			resumeHeaderRe.MatchString(line)
	})
}

// segmentLines 按行累积片段。空行与新段落标记关闭当前片段，
// 短于 minLen 的片段丢弃但不占用编号。
func segmentLines(text string, kind types.SourceKind, idPrefix string, minLen int, isNewSegment func(string) bool) []types.EvidenceSegment {
	var segments []types.EvidenceSegment
	segmentID := 1
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.Join(current, " ")
		if len(joined) > minLen {
			segments = append(segments, types.EvidenceSegment{
				ID:   fmt.Sprintf("%s%d", idPrefix, segmentID),
				Text: joined,
				Kind: kind,
			})
			segmentID++
		}
		current = current[:0]
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			flush()
			continue
		}

		if isNewSegment(line) && len(current) > 0 {
			flush()
		}

		// 去掉列表标记前缀
		clean := bulletPrefixRe.ReplaceAllString(line, "")
		if clean != "" {
			current = append(current, clean)
		}
	}
	flush()

	return segments
}

// SegmentReferences 从检索到的参考简历中抽取成就型要点:
// 取前 topN 份简历里带数字且长度超过40的列表行，编号为 REF#1 起，
// 总量不超过 cap 条。
func SegmentReferences(references []types.ResumeRecord, topN, segmentCap int) []types.EvidenceSegment {
	if topN <= 0 {
		topN = 3
	}
	if segmentCap <= 0 {
		segmentCap = 20
	}
	if len(references) > topN {
		references = references[:topN]
	}

	var segments []types.EvidenceSegment
	segmentID := 1

	for idx, resume := range references {
		for _, rawLine := range strings.Split(resume.Text, "\n") {
			line := strings.TrimSpace(rawLine)
			isBullet := strings.HasPrefix(line, "-") ||
				strings.HasPrefix(line, "•") ||
				strings.HasPrefix(line, "*")
			if !isBullet || len(line) <= 40 {
				continue
			}
			if !containsDigitRe.MatchString(line) {
				continue
			}

			segments = append(segments, types.EvidenceSegment{
				ID:        fmt.Sprintf("REF#%d", segmentID),
				Text:      refBulletRe.ReplaceAllString(line, ""),
				Kind:      types.SourceReference,
				SourceIdx: idx,
			})
			segmentID++
			if segmentID > segmentCap {
				return segments
			}
		}
	}

	return segments
}

// FindCandidateSegments 用关键词匹配为单条要求挑选最相关的片段。
// 关键词是要求文本里长度>=3的小写单词；要求开头20个字符的短语命中额外+5分。
// 得分为0的片段被排除，同分片段保持原有顺序。
func FindCandidateSegments(requirement string, segments []types.EvidenceSegment, topK int) []types.EvidenceSegment {
	if topK <= 0 {
		topK = 3
	}

	reqLower := strings.ToLower(requirement)
	keywords := make(map[string]struct{})
	for _, kw := range keywordRe.FindAllString(reqLower, -1) {
		keywords[kw] = struct{}{}
	}

	phrase := reqLower
	if runes := []rune(phrase); len(runes) > 20 {
		phrase = string(runes[:20])
	}

	type scored struct {
		seg   types.EvidenceSegment
		score int
	}
	var candidates []scored
	for _, seg := range segments {
		textLower := strings.ToLower(seg.Text)
		score := 0
		for kw := range keywords {
			if strings.Contains(textLower, kw) {
				score++
			}
		}
		if phrase != "" && strings.Contains(textLower, phrase) {
			score += 5
		}
		if score > 0 {
			candidates = append(candidates, scored{seg: seg, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	result := make([]types.EvidenceSegment, len(candidates))
	for i, c := range candidates {
		result[i] = c.seg
	}
	return result
}

// isUpperLine 判断一行是否全为大写字母 (至少包含一个字母)
func isUpperLine(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
