package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSkills(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain skill words",
			text: "Experienced with Python, Django and PostgreSQL on AWS.",
			want: []string{"aws", "django", "postgresql", "python"},
		},
		{
			name: "symbol-bearing skills survive tokenization",
			text: "Worked on C++ services, C# tooling and CI/CD pipelines with scikit-learn models.",
			want: []string{"c#", "c++", "ci/cd", "scikit-learn"},
		},
		{
			name: "no known skills",
			text: "Passionate about gardening and cooking.",
			want: []string{},
		},
		{
			name: "deduplicated and sorted",
			text: "python python PYTHON docker Docker",
			want: []string{"docker", "python"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSkills(tt.text))
		})
	}
}

func TestExtractTitles(t *testing.T) {
	t.Run("hint match sorted alphabetically", func(t *testing.T) {
		titles := ExtractTitles("Senior Software Engineer with strong backend skills")
		assert.Equal(t, []string{"engineer", "software engineer"}, titles)
	})

	t.Run("fallback to short heading lines", func(t *testing.T) {
		titles := ExtractTitles("Jane Doe\nPlatform Wrangler Senior\nsummary of many things here")
		// 无线索命中时在前20行里找含职位关键词的短行
		assert.Equal(t, []string{"platform wrangler senior"}, titles)
	})

	t.Run("unknown when nothing matches", func(t *testing.T) {
		assert.Equal(t, []string{"unknown"}, ExtractTitles("cooking enthusiast"))
	})
}

func TestExtractYears(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"8 years of experience", 8},
		{"5+ years with Python, 10 yrs total industry", 10},
		{"3years", 3},
		{"no explicit duration", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractYears(tt.text), "text=%q", tt.text)
	}
}

func TestExtractFields(t *testing.T) {
	fields := ExtractFields("Senior Data Engineer\n7+ years building Spark and Kafka pipelines on AWS")
	assert.Equal(t, []string{"aws", "kafka", "spark"}, fields.Skills)
	assert.Contains(t, fields.Titles, "data engineer")
	assert.Equal(t, 7, fields.Years)
}

func TestInferJDTitle(t *testing.T) {
	assert.Equal(t, "data scientist", InferJDTitle("We are hiring a Data Scientist for our ML team"))
	assert.Equal(t, "software engineer", InferJDTitle("Join our amazing company!"))

	// 多个线索命中时取字典序最小的，而不是线索表顺序
	assert.Equal(t, "data engineer", InferJDTitle("Looking for a Data Engineer to build pipelines"))
}
