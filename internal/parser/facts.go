package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"resume-match-go/internal/types"
)

// 学历与时间段的正则。大小写不敏感的部分使用 (?i) 前缀。
var (
	degreeRe      = regexp.MustCompile(`(?i)\b(B\.?Tech|Bachelor|B\.?S\.?|B\.?E\.?|M\.?S\.?|Master|M\.?Tech|MBA|Ph\.?D\.?)\b`)
	fieldRe       = regexp.MustCompile(`(?i)\b(Computer Science|CS|Information Technology|IT|Engineering|Mathematics|Statistics|Data Science|Software|Electrical|Mechanical)\b`)
	institutionRe = regexp.MustCompile(`([A-Z][a-z]+ (?:University|Institute|College|Tech))`)

	// "Jan 2022 - Present", "Jun 2021 – Dec 2022"
	monthRangeRe = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{4})\s*[-–—to]\s*(Present|Current|(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{4}))`)
	// "2020-2023", "2019 – Present"
	yearRangeRe = regexp.MustCompile(`(?i)(\d{4})\s*[-–—to]\s*(Present|Current|\d{4})`)

	fourDigitYearRe = regexp.MustCompile(`\d{4}`)
)

// ExtractResumeFacts 在LLM分析前确定性地抽取简历关键事实，
// 避免模型漏掉或凭空编造基础信息。currentYear 用于解析 Present/Current。
func ExtractResumeFacts(resumeText string, currentYear int) types.ResumeFacts {
	if currentYear <= 0 {
		currentYear = time.Now().Year()
	}

	facts := types.ResumeFacts{
		Education: []types.EducationFact{},
		Ranges:    []types.ExperienceRange{},
	}

	lines := strings.Split(resumeText, "\n")

	for _, line := range lines {
		if m := degreeRe.FindStringSubmatch(line); m != nil {
			fact := types.EducationFact{
				Degree:  m[1],
				RawText: truncateRunes(strings.TrimSpace(line), 100),
			}
			if fm := fieldRe.FindStringSubmatch(line); fm != nil {
				fact.Field = fm[1]
			}
			if im := institutionRe.FindStringSubmatch(line); im != nil {
				fact.Institution = im[1]
			}
			facts.Education = append(facts.Education, fact)
		}
	}

	for _, line := range lines {
		for _, re := range []*regexp.Regexp{monthRangeRe, yearRangeRe} {
			for _, fullMatch := range re.FindAllString(line, -1) {
				if r, ok := parseDateRange(fullMatch, currentYear); ok {
					facts.Ranges = append(facts.Ranges, r)
				}
			}
		}
	}

	// 总年限是各时间段的粗略求和，重叠区间不去重
	for _, r := range facts.Ranges {
		facts.TotalYears += r.Years
	}

	return facts
}

// parseDateRange 从匹配到的时间段文本中解析起止年份。
// 起始年取第一个四位数字；Present/Current 记为当前年份并标记开放区间。
func parseDateRange(fullMatch string, currentYear int) (types.ExperienceRange, bool) {
	years := fourDigitYearRe.FindAllString(fullMatch, -1)
	if len(years) == 0 {
		return types.ExperienceRange{}, false
	}
	startYear, err := strconv.Atoi(years[0])
	if err != nil {
		return types.ExperienceRange{}, false
	}

	lowered := strings.ToLower(fullMatch)
	openEnd := strings.Contains(lowered, "present") || strings.Contains(lowered, "current")

	var endYear int
	switch {
	case openEnd:
		endYear = currentYear
	case len(years) > 1:
		endYear, err = strconv.Atoi(years[len(years)-1])
		if err != nil {
			return types.ExperienceRange{}, false
		}
	default:
		endYear = currentYear
	}

	duration := endYear - startYear
	if duration < 0 {
		duration = 0
	}

	// 结束于当前年份的区间一律标记为 Present，即使写的是具体年份
	end := strconv.Itoa(endYear)
	if endYear == currentYear {
		end = "Present"
	}

	return types.ExperienceRange{
		Start:   strconv.Itoa(startYear),
		End:     end,
		Years:   float64(duration),
		RawText: fullMatch,
		OpenEnd: openEnd,
	}, true
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
