package main

import (
	"encoding/json"
	"hash/fnv"
	"strings"

	"github.com/zen-systems/promptforge/pkg/adapter"
)

const (
	analyzePrefix = "Analyze this prompt:\n\n"
	improvePrefix = "Improve this prompt:\n\n"
)

// offlineResponder answers agent requests without a provider so the CLI can
// be exercised with --mock. Scores are derived from a hash of the request and
// are stable across runs.
func offlineResponder(req adapter.Request) (string, error) {
	var reply any
	switch {
	case strings.HasPrefix(req.Prompt, analyzePrefix):
		reply = map[string]any{
			"score":      4 + float64(hashOf(req.System, req.Prompt)%50)/10,
			"strengths":  []string{"States a task"},
			"weaknesses": []string{"No explicit role", "No output format"},
		}
	case strings.HasPrefix(req.Prompt, improvePrefix):
		original := strings.TrimPrefix(req.Prompt, improvePrefix)
		if i := strings.LastIndex(original, "\n\nWeaknesses found:"); i >= 0 {
			original = original[:i]
		}
		focus, _, _ := strings.Cut(req.System, " expert")
		reply = map[string]any{
			"suggestions":     []string{"Add a role definition", "Specify the output format"},
			"improved_prompt": "You are an expert assistant.\n\n" + original + "\n\nRespond in a clear, structured format.",
			"confidence":      0.5 + float64(hashOf(focus)%50)/100,
		}
	default:
		return "mock response:\n" + req.Prompt, nil
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(data) + "\n```", nil
}

func hashOf(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}
