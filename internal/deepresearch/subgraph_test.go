package deepresearch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dev.helix.agent/internal/domain"
)

func TestParseListLinesExtractsNumberedAndBulletedLines(t *testing.T) {
	text := "Intro paragraph not a question\n1. What is X?\n2) How does Y work\n- a bullet question\nnot numbered\n• last one"
	lines := parseListLines(text, maxSubQuestions)
	assert.Equal(t, []string{"What is X?", "How does Y work", "a bullet question", "last one"}, lines)
}

func TestParseListLinesRespectsLimit(t *testing.T) {
	text := "1. a\n2. b\n3. c\n4. d\n5. e\n6. f"
	lines := parseListLines(text, 3)
	assert.Len(t, lines, 3)
}

func TestParseConfidenceExtractsValue(t *testing.T) {
	assert.InDelta(t, 0.9, parseConfidence("CONFIDENCE: 0.9\nGAPS: None"), 0.001)
}

func TestParseConfidenceDefaultsWhenMissing(t *testing.T) {
	assert.InDelta(t, 0.5, parseConfidence("no markers here"), 0.001)
}

func TestParseSectionReturnsNilForNone(t *testing.T) {
	assert.Nil(t, parseSection("GAPS: None\nFOLLOW_UP: None", "GAPS:", "FOLLOW_UP:"))
}

func TestParseSectionSplitsLines(t *testing.T) {
	text := "GAPS:\nmissing recent data\nunclear scope\nFOLLOW_UP:\nwhat happened recently?"
	gaps := parseSection(text, "GAPS:", "FOLLOW_UP:")
	assert.Equal(t, []string{"missing recent data", "unclear scope"}, gaps)
}

func TestFilterFollowUpsDropsShortQuestions(t *testing.T) {
	questions := []string{"why?", "what is the long term economic impact of this policy change?"}
	filtered := filterFollowUps(questions, maxFollowUps)
	assert.Len(t, filtered, 1)
}

func TestFilterFollowUpsDropsLongNonQuestions(t *testing.T) {
	questions := []string{"this is a perfectly long statement but it is not phrased as a question at all"}
	filtered := filterFollowUps(questions, maxFollowUps)
	assert.Empty(t, filtered)
}

func TestDropShortLinesFiltersBelowMinLength(t *testing.T) {
	lines := []string{"too short", "this one is definitely long enough to keep"}
	kept := dropShortLines(lines, subQuestionMinLen)
	assert.Equal(t, []string{"this one is definitely long enough to keep"}, kept)
}

func TestDedupeSourcesRemovesDuplicatesAndRespectsLimit(t *testing.T) {
	findings := []domain.Finding{
		{Sources: []string{"http://a", "http://b"}},
		{Sources: []string{"http://a", "http://c"}},
	}
	sources := dedupeSources(findings, 2)
	assert.Equal(t, []string{"http://a", "http://b"}, sources)
}
