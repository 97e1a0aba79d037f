package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySourcesFallbackWhenNoSourcesAvailable(t *testing.T) {
	decision := classifySources(nil, nil, "", "summarize this", false, false, false, "")
	assert.False(t, decision.UseUserDocs)
	assert.False(t, decision.UseKB)
	assert.Equal(t, "none", decision.SearchStrategy)
}

func TestClassifySourcesFallbackUnionWhenModelUnreachable(t *testing.T) {
	decision := classifySources(nil, nil, "", "explain the attached contract", true, true, true, "")
	assert.True(t, decision.UseUserDocs)
	assert.True(t, decision.UseKB)
	assert.Equal(t, "both", decision.SearchStrategy)
	assert.Equal(t, "Fallback due to parsing error", decision.Reasoning)
}

func TestClassifySourcesForcesUnavailableScopesOff(t *testing.T) {
	decision := classifySources(nil, nil, "", "explain this", true, false, true, "")
	assert.True(t, decision.UseUserDocs)
	assert.False(t, decision.UseKB)
}

func TestBuildRAGPromptWithoutCustomInstruction(t *testing.T) {
	prompt := buildRAGPrompt("some context", "")
	assert.Contains(t, prompt, "some context")
	assert.Contains(t, prompt, "Answer the user's question")
}

func TestBuildRAGPromptPrependsCustomInstruction(t *testing.T) {
	prompt := buildRAGPrompt("context", "Always answer in French.")
	assert.True(t, len(prompt) > 0)
	assert.Equal(t, 0, indexOfOrNegOne(prompt, "Always answer in French."))
}

func indexOfOrNegOne(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
