package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractResumeFacts_Education(t *testing.T) {
	resume := `John Smith
B.Tech in Computer Science from Pune University
MBA, Finance`

	facts := ExtractResumeFacts(resume, 2026)
	require.Len(t, facts.Education, 2)

	assert.Equal(t, "B.Tech", facts.Education[0].Degree)
	assert.Equal(t, "Computer Science", facts.Education[0].Field)
	assert.Equal(t, "Pune University", facts.Education[0].Institution)
	assert.Contains(t, facts.Education[0].RawText, "B.Tech in Computer Science")

	assert.Equal(t, "MBA", facts.Education[1].Degree)
	assert.Empty(t, facts.Education[1].Institution)
}

func TestExtractResumeFacts_ExperienceRanges(t *testing.T) {
	resume := `Experience
Software Engineer, Acme Corp
Jun 2019 - Dec 2022
Data Analyst, Beta Inc
2015 - 2018`

	facts := ExtractResumeFacts(resume, 2026)
	require.Len(t, facts.Ranges, 2)

	assert.Equal(t, "2019", facts.Ranges[0].Start)
	assert.Equal(t, "2022", facts.Ranges[0].End)
	assert.InDelta(t, 3.0, facts.Ranges[0].Years, 1e-9)
	assert.False(t, facts.Ranges[0].OpenEnd)

	assert.Equal(t, "2015", facts.Ranges[1].Start)
	assert.Equal(t, "2018", facts.Ranges[1].End)
	assert.InDelta(t, 3.0, facts.Ranges[1].Years, 1e-9)

	assert.InDelta(t, 6.0, facts.TotalYears, 1e-9)
}

func TestExtractResumeFacts_PresentRange(t *testing.T) {
	facts := ExtractResumeFacts("Senior Engineer\n2020 - Present", 2026)
	require.Len(t, facts.Ranges, 1)

	r := facts.Ranges[0]
	assert.Equal(t, "2020", r.Start)
	assert.Equal(t, "Present", r.End)
	assert.True(t, r.OpenEnd)
	assert.InDelta(t, 6.0, r.Years, 1e-9)
	assert.InDelta(t, 6.0, facts.TotalYears, 1e-9)
}

func TestExtractResumeFacts_ClosedRangeEndingThisYearLabeledPresent(t *testing.T) {
	facts := ExtractResumeFacts("Engineer\n2021 - 2026", 2026)
	require.Len(t, facts.Ranges, 1)

	// 写明的结束年份等于当前年份时也标记为 Present，但区间不算开放
	r := facts.Ranges[0]
	assert.Equal(t, "2021", r.Start)
	assert.Equal(t, "Present", r.End)
	assert.False(t, r.OpenEnd)
	assert.InDelta(t, 5.0, r.Years, 1e-9)
}

func TestExtractResumeFacts_InvertedRangeClampedToZero(t *testing.T) {
	facts := ExtractResumeFacts("2022 - 2019", 2026)
	require.Len(t, facts.Ranges, 1)
	assert.Zero(t, facts.Ranges[0].Years)
}

func TestExtractResumeFacts_Empty(t *testing.T) {
	facts := ExtractResumeFacts("no structured dates or degrees here", 2026)
	assert.Empty(t, facts.Education)
	assert.Empty(t, facts.Ranges)
	assert.Zero(t, facts.TotalYears)
}
