// Package evidence writes an on-disk audit bundle for each coordination
// decision: the decision itself, one record per agent and the prompt texts
// as content-addressed blobs.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zen-systems/promptforge/pkg/coordinator"
	"github.com/zen-systems/promptforge/pkg/crypto"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// DecisionRecord captures decision-level metadata.
type DecisionRecord struct {
	ID              string             `json:"id"`
	CreatedAt       time.Time          `json:"created_at"`
	PromptHash      string             `json:"prompt_hash"`
	PromptRef       string             `json:"prompt_ref"`
	FinalPromptHash string             `json:"final_prompt_hash"`
	FinalPromptRef  string             `json:"final_prompt_ref"`
	SelectedAgent   string             `json:"selected_agent"`
	Rationale       string             `json:"decision_rationale"`
	VoteBreakdown   map[string]float64 `json:"vote_breakdown"`
	Agents          []string           `json:"agents"`
	TotalTokens     int                `json:"total_tokens"`
	TotalCostUSD    float64            `json:"total_cost_usd"`
	Degraded        bool               `json:"degraded"`
}

// AgentRecord captures evidence for a single agent.
type AgentRecord struct {
	Name              string         `json:"name"`
	Score             float64        `json:"score"`
	Strengths         []string       `json:"strengths,omitempty"`
	Weaknesses        []string       `json:"weaknesses,omitempty"`
	Suggestions       []string       `json:"suggestions,omitempty"`
	Confidence        float64        `json:"confidence"`
	ImprovedPromptRef string         `json:"improved_prompt_ref,omitempty"`
	AnalysisFallback  bool           `json:"analysis_fallback"`
	SuggestFallback   bool           `json:"suggestions_fallback"`
	Vote              float64        `json:"vote"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	TokenUsage        *tokens.Usage  `json:"token_usage,omitempty"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	dir     string
}

// NewWriter creates a writer rooted at baseDir/decisionID.
func NewWriter(baseDir, decisionID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if decisionID == "" {
		return nil, fmt.Errorf("decision ID is required")
	}

	dir := filepath.Join(baseDir, decisionID)
	for _, d := range []string{dir, filepath.Join(dir, "agents"), filepath.Join(dir, "blobs")} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return nil, err
		}
		// MkdirAll does not tighten directories that already exist.
		if err := os.Chmod(d, 0o700); err != nil {
			return nil, err
		}
	}

	return &Writer{baseDir: baseDir, dir: dir}, nil
}

// Dir returns the decision directory path.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteDecision writes decision metadata to decision.json.
func (w *Writer) WriteDecision(record DecisionRecord) error {
	return writeJSON(filepath.Join(w.dir, "decision.json"), record)
}

// WriteAgent writes an agent record to agents/<name>.json.
func (w *Writer) WriteAgent(record AgentRecord) error {
	if record.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	return writeJSON(filepath.Join(w.dir, "agents", sanitizeKind(record.Name)+".json"), record)
}

// WriteBlob stores content under blobs/<kind>-<sha256>.txt and returns the
// path relative to the decision directory plus the hex digest. Writing the
// same content twice yields the same reference.
func (w *Writer) WriteBlob(kind string, content []byte) (string, string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])
	ref := filepath.ToSlash(filepath.Join("blobs", fmt.Sprintf("%s-%s.txt", sanitizeKind(kind), sha)))

	path := filepath.Join(w.dir, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err == nil {
		return ref, sha, nil
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", "", err
	}
	return ref, sha, nil
}

// WriteSignature signs decision.json and writes signature.json.
func (w *Writer) WriteSignature(signer *crypto.Signer) error {
	payload, err := os.ReadFile(filepath.Join(w.dir, "decision.json"))
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(w.dir, "signature.json"), signer.Sign(payload))
}

// Verify checks the signature of the bundle in dir against the keys in keyDir.
func Verify(dir, keyDir string) error {
	payload, err := os.ReadFile(filepath.Join(dir, "decision.json"))
	if err != nil {
		return fmt.Errorf("read decision: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "signature.json"))
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	var sig crypto.Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return crypto.Verify(keyDir, payload, sig)
}

// Write stores the full bundle for d, whose original input was prompt, and
// returns the decision directory. A non-nil signer also signs the bundle.
func Write(baseDir, prompt string, d *coordinator.Decision, signer *crypto.Signer) (string, error) {
	w, err := NewWriter(baseDir, d.ID)
	if err != nil {
		return "", err
	}

	promptRef, promptSha, err := w.WriteBlob("prompt", []byte(prompt))
	if err != nil {
		return "", fmt.Errorf("write prompt blob: %w", err)
	}
	finalRef, finalSha, err := w.WriteBlob("final", []byte(d.FinalPrompt))
	if err != nil {
		return "", fmt.Errorf("write final prompt blob: %w", err)
	}

	names := make([]string, 0, len(d.AgentResults))
	for _, r := range d.AgentResults {
		names = append(names, r.AgentName)

		improvedRef, _, err := w.WriteBlob("improved", []byte(r.Suggestions.ImprovedPrompt))
		if err != nil {
			return "", fmt.Errorf("write %s prompt blob: %w", r.AgentName, err)
		}
		rec := AgentRecord{
			Name:              r.AgentName,
			Score:             r.Analysis.Score,
			Strengths:         r.Analysis.Strengths,
			Weaknesses:        r.Analysis.Weaknesses,
			Suggestions:       r.Suggestions.Suggestions,
			Confidence:        r.Suggestions.Confidence,
			ImprovedPromptRef: improvedRef,
			AnalysisFallback:  r.Analysis.Fallback,
			SuggestFallback:   r.Suggestions.Fallback,
			Vote:              d.VoteBreakdown[r.AgentName],
			Metadata:          r.Metadata,
			TokenUsage:        r.TokenUsage,
		}
		if err := w.WriteAgent(rec); err != nil {
			return "", fmt.Errorf("write agent %s: %w", r.AgentName, err)
		}
	}

	err = w.WriteDecision(DecisionRecord{
		ID:              d.ID,
		CreatedAt:       d.CreatedAt,
		PromptHash:      promptSha,
		PromptRef:       promptRef,
		FinalPromptHash: finalSha,
		FinalPromptRef:  finalRef,
		SelectedAgent:   d.SelectedAgent,
		Rationale:       d.Rationale,
		VoteBreakdown:   d.VoteBreakdown,
		Agents:          names,
		TotalTokens:     d.TotalTokens,
		TotalCostUSD:    d.TotalCostUSD,
		Degraded:        d.Degraded(),
	})
	if err != nil {
		return "", fmt.Errorf("write decision: %w", err)
	}
	if signer != nil {
		if err := w.WriteSignature(signer); err != nil {
			return "", fmt.Errorf("sign decision: %w", err)
		}
	}
	return w.Dir(), nil
}

// sanitizeKind keeps [a-z0-9_-] and falls back to "blob".
func sanitizeKind(kind string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(kind) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "blob"
	}
	return s
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
