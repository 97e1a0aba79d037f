// Package llmjson extracts a JSON object embedded in an LLM's free-text
// response, mirroring the original backend's re.search(r'\{[\s\S]*\}', ...)
// + json.loads idiom used throughout Rag.py and Orchestrator.py whenever a
// prompt asks a chat model to "respond with a single JSON object."
package llmjson

import (
	"encoding/json"
	"regexp"
)

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Extract finds the first (greedy) {...} span in text and unmarshals it
// into v. It returns an error if no brace span is found or the span isn't
// valid JSON, so callers can fall back to a documented default.
func Extract(text string, v interface{}) error {
	match := objectPattern.FindString(text)
	if match == "" {
		return errNoObject
	}
	return json.Unmarshal([]byte(match), v)
}

var errNoObject = jsonError("no json object found in response")

type jsonError string

func (e jsonError) Error() string { return string(e) }
