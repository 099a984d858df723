package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"resume-match-go/internal/types"
)

// skillBank 技能词表, 按词归一化后做精确匹配
var skillBank = func() map[string]struct{} {
	words := []string{
		// Languages
		"python", "java", "javascript", "typescript", "c++", "c#", "go", "golang",
		"rust", "ruby", "php", "swift", "kotlin", "scala", "r", "matlab", "perl",
		"shell", "bash",
		// Frontend
		"react", "vue", "angular", "svelte", "html", "css", "sass", "tailwind",
		"bootstrap", "jquery", "redux", "nextjs", "webpack", "vite",
		// Backend
		"node", "nodejs", "express", "flask", "django", "fastapi", "spring",
		"springboot", "rails", "laravel", "dotnet", "aspnet",
		// Databases
		"sql", "nosql", "postgres", "postgresql", "mysql", "mongodb", "redis",
		"cassandra", "dynamodb", "elasticsearch", "oracle", "mssql", "sqlite",
		// Cloud
		"aws", "gcp", "azure", "lambda", "s3", "ec2", "cloudfront", "rds",
		"redshift", "cloud", "cloudformation", "ecs", "eks", "fargate",
		// DevOps
		"docker", "kubernetes", "k8s", "terraform", "ansible", "jenkins",
		"circleci", "github", "gitlab", "git", "linux", "unix", "nginx",
		"apache", "ci/cd", "helm",
		// Data
		"pandas", "numpy", "spark", "hadoop", "airflow", "kafka", "scikit-learn",
		"tensorflow", "pytorch", "keras", "jupyter", "tableau", "powerbi", "etl",
		"databricks",
		// Other
		"rest", "restful", "api", "graphql", "grpc", "microservices", "agile",
		"scrum", "jira",
	}
	bank := make(map[string]struct{}, len(words))
	for _, w := range words {
		bank[w] = struct{}{}
	}
	return bank
}()

// titleHints 职位线索, 从长到短都做子串匹配
var titleHints = []string{
	"software engineer", "software developer", "sde", "engineer", "developer",
	"programmer", "backend engineer", "frontend engineer", "full stack",
	"fullstack", "devops engineer", "site reliability engineer", "sre",
	"platform engineer", "systems engineer", "data engineer", "data scientist",
	"ml engineer", "machine learning engineer", "ai engineer", "data analyst",
	"business analyst", "analytics engineer", "research scientist",
	"engineering manager", "technical lead", "tech lead", "team lead",
	"lead engineer", "staff engineer", "principal engineer", "senior engineer",
	"architect", "solutions architect", "security engineer", "qa engineer",
	"test engineer", "mobile developer", "ios developer", "android developer",
	"cloud engineer", "infrastructure engineer", "network engineer",
	"product manager", "project manager", "scrum master", "consultant",
	"intern", "associate",
}

var (
	yearsRe         = regexp.MustCompile(`(\d+)\+?\s*(?:years|yrs)`)
	nonAlphaNumRe   = regexp.MustCompile(`[^a-z0-9\n ]+`)
	titleFallbackRe = regexp.MustCompile(`engineer|developer|manager|analyst|scientist|architect|lead|senior|junior`)
)

// ExtractFields 从文本中提取技能、职位与工作年限，结果是确定性的。
func ExtractFields(text string) types.FieldSet {
	return types.FieldSet{
		Skills: ExtractSkills(text),
		Titles: ExtractTitles(text),
		Years:  ExtractYears(text),
	}
}

// ExtractSkills 提取词表内出现的技能，按字典序返回
func ExtractSkills(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := nonAlphaNumRe.ReplaceAllString(lowered, " ")
	tokens := strings.Fields(cleaned)

	found := make(map[string]struct{})
	for _, tok := range tokens {
		if _, ok := skillBank[tok]; ok {
			found[tok] = struct{}{}
		}
	}
	// ci/cd 与 c++/c# 等带符号的技能在分词清洗后会丢失，需对原文做子串补充
	for _, special := range []string{"ci/cd", "c++", "c#", "scikit-learn"} {
		if strings.Contains(lowered, special) {
			found[special] = struct{}{}
		}
	}

	skills := make([]string, 0, len(found))
	for s := range found {
		skills = append(skills, s)
	}
	sort.Strings(skills)
	return skills
}

// ExtractTitles 提取职位，按字典序返回。先对线索表做子串匹配，无命中时
// 在前20行里找较短且含职位关键词的行。都没有则返回 ["unknown"]。
func ExtractTitles(text string) []string {
	lowered := strings.ToLower(text)

	var titles []string
	seen := make(map[string]struct{})
	for _, hint := range titleHints {
		if strings.Contains(lowered, hint) {
			if _, dup := seen[hint]; !dup {
				seen[hint] = struct{}{}
				titles = append(titles, hint)
			}
		}
	}
	if len(titles) > 0 {
		sort.Strings(titles)
		return titles
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) >= 80 {
			continue
		}
		loweredLine := strings.ToLower(trimmed)
		if titleFallbackRe.MatchString(loweredLine) {
			if _, dup := seen[loweredLine]; !dup {
				seen[loweredLine] = struct{}{}
				titles = append(titles, loweredLine)
			}
		}
	}
	if len(titles) == 0 {
		return []string{"unknown"}
	}
	sort.Strings(titles)
	return titles
}

// ExtractYears 提取声明的工作年限，取所有"N years/yrs"中的最大值，没有则为0
func ExtractYears(text string) int {
	maxYears := 0
	for _, m := range yearsRe.FindAllStringSubmatch(strings.ToLower(text), -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxYears {
			maxYears = n
		}
	}
	return maxYears
}

// InferJDTitle 推断JD的目标职位，无法识别时回退到 software engineer
func InferJDTitle(jdText string) string {
	titles := ExtractTitles(jdText)
	if len(titles) > 0 && titles[0] != "unknown" {
		return titles[0]
	}
	return "software engineer"
}
