package types

import (
	"errors"
	"fmt"
)

// SourceKind 标识证据片段的来源文档类型
type SourceKind string

const (
	SourceJD        SourceKind = "jd"        // 岗位描述
	SourceResume    SourceKind = "resume"    // 目标简历
	SourceReference SourceKind = "reference" // 参考简历库
)

// ResumeMetadata 简历入库时随文本一起持久化的结构化元数据
type ResumeMetadata struct {
	Skills   []string `json:"skills"`
	Titles   []string `json:"titles"`
	Years    int      `json:"years"`
	Category string   `json:"category,omitempty"`
	Filename string   `json:"filename,omitempty"`
}

// ResumeRecord 索引中的一条简历记录，ID由逻辑键确定性派生
type ResumeRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata ResumeMetadata `json:"metadata"`
}

// EvidenceSegment 切分器产出的可引用证据片段。
// ID 格式: JD#1 / R#1 / REF#1，编号从1开始
type EvidenceSegment struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Kind      SourceKind `json:"kind"`
	SourceIdx int        `json:"source_idx,omitempty"` // 参考片段来自第几份简历
}

// Citation LLM在评估中给出的证据引用，Quote必须是被引片段的逐字子串
type Citation struct {
	SegmentID string `json:"id"`
	Quote     string `json:"quote"`
}

// RequirementType 要求的强制程度
type RequirementType string

const (
	RequirementMust      RequirementType = "must"
	RequirementPreferred RequirementType = "preferred"
	RequirementNice      RequirementType = "nice"
)

// RequirementCategory 要求所属的类别
type RequirementCategory string

const (
	CategorySkills           RequirementCategory = "skills"
	CategoryExperience       RequirementCategory = "experience"
	CategoryEducation        RequirementCategory = "education"
	CategoryTools            RequirementCategory = "tools"
	CategoryResponsibilities RequirementCategory = "responsibilities"
)

// Requirement 阶段一从JD中抽取出的一条岗位要求
type Requirement struct {
	Text       string              `json:"requirement"`
	Type       RequirementType     `json:"type"`
	Category   RequirementCategory `json:"category"`
	JDEvidence []Citation          `json:"jd_evidence"`
}

// MatchStatus 单条要求的匹配结论
type MatchStatus string

const (
	StatusMet     MatchStatus = "met"
	StatusPartial MatchStatus = "partial"
	StatusMissing MatchStatus = "missing"
)

// MatchEvaluation 阶段二对一条要求的逐条评估结果
type MatchEvaluation struct {
	Requirement    string      `json:"requirement"`
	Status         MatchStatus `json:"status"`
	Confidence     float64     `json:"confidence"`
	JDEvidence     []Citation  `json:"jd_evidence"`
	ResumeEvidence []Citation  `json:"resume_evidence"`
	Notes          string      `json:"notes,omitempty"`
}

// ReferencePattern 阶段三从参考简历中归纳出的表达模式
type ReferencePattern struct {
	Pattern  string     `json:"pattern"`
	Evidence []Citation `json:"reference_evidence"`
}

// EducationFact 从简历文本中正则抽取的学历事实
type EducationFact struct {
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Institution string `json:"institution"`
	RawText     string `json:"raw_text"`
}

// ExperienceRange 一段带起止时间的工作经历
type ExperienceRange struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Years    float64 `json:"years"`
	RawText  string  `json:"raw_text"`
	OpenEnd  bool    `json:"open_end"` // 截止到 Present/Current
}

// ResumeFacts 确定性抽取的简历事实，评估时优先于生成式推断
type ResumeFacts struct {
	Education  []EducationFact   `json:"education"`
	Ranges     []ExperienceRange `json:"experience_ranges"`
	TotalYears float64           `json:"total_years_experience"`
}

// ReportMeta 报告的切分统计
type ReportMeta struct {
	JDSegments        int `json:"jd_segments"`
	ResumeSegments    int `json:"resume_segments"`
	ReferenceSegments int `json:"reference_segments"`
}

// GroundedReport 三阶段评估的汇总产物
type GroundedReport struct {
	Requirements []Requirement      `json:"requirements"`
	Evaluations  []MatchEvaluation  `json:"evaluations"`
	Patterns     []ReferencePattern `json:"reference_patterns,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	Facts        ResumeFacts        `json:"resume_facts"`
	Coverage     float64            `json:"requirement_coverage"` // met要求占比，与加权分是两个独立口径
	Meta         ReportMeta         `json:"meta"`
}

// SignalBreakdown 多信号打分的各分量，均在[0,1]
type SignalBreakdown struct {
	Semantic     float64 `json:"vector_similarity"`
	SkillOverlap float64 `json:"keyword_overlap"`
	Title        float64 `json:"title_match"`
	Experience   float64 `json:"years_fit"`
}

// RankedCandidate 打分排序后的一名候选人
type RankedCandidate struct {
	ResumeID      string          `json:"resume_id"`
	Score         float64         `json:"score"` // 加权总分，三位小数
	Breakdown     SignalBreakdown `json:"breakdown"`
	Why           []string        `json:"why"` // 最多3条解释
	SkillsMatched []string        `json:"skills_matched,omitempty"`
	Years         int             `json:"years,omitempty"`
}

// ScoreDefect 单个候选人打分失败的记录，不中断整体排序
type ScoreDefect struct {
	ResumeID string `json:"resume_id"`
	Reason   string `json:"reason"`
}

// ScoreReport 多信号打分的完整输出
type ScoreReport struct {
	Ranked  []RankedCandidate `json:"ranked"`
	Defects []ScoreDefect     `json:"defects,omitempty"`
}

// FieldSet 从JD或简历文本中抽取的轻量结构化字段
type FieldSet struct {
	Skills []string `json:"skills"`
	Titles []string `json:"titles"`
	Years  int      `json:"years"`
}

// ErrorKind 错误分类，贯穿评分与评估管线
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindEmbeddingFailure  ErrorKind = "embedding_failure"
	KindCompletionFailure ErrorKind = "completion_failure"
	KindParseFailure      ErrorKind = "parse_failure"
	KindValidationFailure ErrorKind = "validation_failure"
	KindInternal          ErrorKind = "internal"
)

// DomainError 带分类的错误，支持 errors.Is/As 展开
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError 创建一个带分类的错误
func NewError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// Errorf 创建一个带分类的格式化错误
func Errorf(kind ErrorKind, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf 返回错误的分类，非DomainError返回KindInternal
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind 判断错误链中是否存在指定分类
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
