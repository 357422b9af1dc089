// Package vlm holds what the vision-language-model backends share: the
// detection prompt and the cleanup of model replies.
package vlm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DetectionPrompt asks a vision model for banknote detections in the same
// shape the hosted detection API returns.
const DetectionPrompt = `You are a banknote detector for Peruvian soles.

Return JSON only:
{
  "predictions": [
    {"class": "S10", "confidence": 0.0, "x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0}
  ]
}

HARD RULES
- One entry per visible banknote. Allowed classes: S10, S20, S50, S100, S200.
- x and y are the CENTER of the banknote, width and height its size.
- All coordinates are normalized to [0,1] (NOT pixels).
- confidence is your certainty in [0,1].
- If there is no banknote, return {"predictions": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// EmptyPredictions is the document for a reply with no usable JSON
const EmptyPredictions = `{"predictions":[]}`

// ParseReply extracts the predictions document from a model reply. A reply
// that carries no usable JSON object yields EmptyPredictions.
func ParseReply(raw string) []byte {
	raw = Sanitize(raw)
	if !strings.HasPrefix(raw, "{") || !json.Valid([]byte(raw)) {
		return []byte(EmptyPredictions)
	}
	return []byte(raw)
}

// Sanitize removes code fences, comments, and trailing commas from a JSON reply
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
