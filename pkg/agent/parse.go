package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const defaultConfidence = 0.5

var errNoScore = errors.New("reply has no score")

// extractJSON returns the JSON object embedded in a model reply, dropping
// markdown code fences and surrounding prose.
func extractJSON(reply string) string {
	s := reply
	if _, after, ok := strings.Cut(s, "```json"); ok {
		s, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(s, "```"); ok {
		s, _, _ = strings.Cut(after, "```")
	}
	s = strings.TrimSpace(s)

	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

type analysisReply struct {
	Score      *float64 `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

type suggestionsReply struct {
	Suggestions    []string `json:"suggestions"`
	ImprovedPrompt string   `json:"improved_prompt"`
	Confidence     *float64 `json:"confidence"`
}

// parseAnalysis decodes an analysis reply. The score is required.
func parseAnalysis(reply string) (Analysis, error) {
	var r analysisReply
	if err := json.Unmarshal([]byte(extractJSON(reply)), &r); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if r.Score == nil {
		return Analysis{}, errNoScore
	}
	return Analysis{
		Score:      clamp(*r.Score, 0, 10),
		Strengths:  nonNil(r.Strengths),
		Weaknesses: nonNil(r.Weaknesses),
	}, nil
}

// parseSuggestions decodes an improvement reply, defaulting the rewrite to
// prompt and the confidence to 0.5.
func parseSuggestions(reply, prompt string) (Suggestions, error) {
	var r suggestionsReply
	if err := json.Unmarshal([]byte(extractJSON(reply)), &r); err != nil {
		return Suggestions{}, fmt.Errorf("decode suggestions: %w", err)
	}
	s := Suggestions{
		Suggestions:    nonNil(r.Suggestions),
		ImprovedPrompt: r.ImprovedPrompt,
		Confidence:     defaultConfidence,
	}
	if strings.TrimSpace(s.ImprovedPrompt) == "" {
		s.ImprovedPrompt = prompt
	}
	if r.Confidence != nil {
		s.Confidence = clamp(*r.Confidence, 0, 1)
	}
	return s, nil
}

func fallbackAnalysis() Analysis {
	return Analysis{
		Score:      5.0,
		Strengths:  []string{"Unable to parse response"},
		Weaknesses: []string{"Analysis failed"},
		Fallback:   true,
	}
}

func fallbackSuggestions(prompt string) Suggestions {
	return Suggestions{
		Suggestions:    []string{"Unable to generate improvements"},
		ImprovedPrompt: prompt,
		Confidence:     defaultConfidence,
		Fallback:       true,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
