package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/promptforge/pkg/agent"
	"github.com/zen-systems/promptforge/pkg/coordinator"
	"github.com/zen-systems/promptforge/pkg/crypto"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

func TestEvidenceWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "dec-123")
	require.NoError(t, err)

	require.NoError(t, writer.WriteDecision(DecisionRecord{ID: "dec-123", CreatedAt: time.Now().UTC(), SelectedAgent: "domain"}))
	require.NoError(t, writer.WriteAgent(AgentRecord{Name: "domain", Score: 6.5, Confidence: 0.9}))
	assert.Error(t, writer.WriteAgent(AgentRecord{}), "unnamed agent")

	assert.FileExists(t, filepath.Join(writer.Dir(), "decision.json"))
	assert.FileExists(t, filepath.Join(writer.Dir(), "agents", "domain.json"))

	if runtime.GOOS != "windows" {
		assertPerm(t, writer.Dir(), 0700)
		assertPerm(t, filepath.Join(writer.Dir(), "agents"), 0700)
		assertPerm(t, filepath.Join(writer.Dir(), "blobs"), 0700)
		assertPerm(t, filepath.Join(writer.Dir(), "decision.json"), 0600)
		assertPerm(t, filepath.Join(writer.Dir(), "agents", "domain.json"), 0600)
	}
}

func TestNewWriterValidation(t *testing.T) {
	_, err := NewWriter("", "id")
	assert.Error(t, err, "empty base dir")
	_, err = NewWriter(t.TempDir(), "")
	assert.Error(t, err, "empty decision id")
}

func TestWriteBlob(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "dec1")
	require.NoError(t, err)

	content := []byte("hello")
	sum := sha256.Sum256(content)

	ref, sha, err := writer.WriteBlob("prompt", content)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), sha)

	blobPath := filepath.Join(writer.Dir(), ref)
	data, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	if runtime.GOOS != "windows" {
		assertPerm(t, blobPath, 0600)
	}

	ref2, sha2, err := writer.WriteBlob("prompt", content)
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
	assert.Equal(t, sha, sha2)
}

func TestWriteBlobKindSanitization(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "dec2")
	require.NoError(t, err)

	ref, _, err := writer.WriteBlob("Prompt 123/../", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "blobs/prompt123-"), ref)
	assert.Equal(t, 1, strings.Count(ref, "/"), ref)

	ref, _, err = writer.WriteBlob("!!!", []byte("y"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "blobs/blob-"), ref)
}

func TestWriteDecisionBundle(t *testing.T) {
	base := t.TempDir()
	d := &coordinator.Decision{
		ID:            "dec-e2e",
		CreatedAt:     time.Date(2025, 11, 6, 12, 0, 0, 0, time.UTC),
		FinalPrompt:   "You are a Python expert.",
		SelectedAgent: "domain",
		Rationale:     "Selected domain",
		AgentResults: []agent.Result{
			{
				AgentName:   "syntax",
				Analysis:    agent.Analysis{Score: 7, Weaknesses: []string{"vague"}},
				Suggestions: agent.Suggestions{ImprovedPrompt: "Be precise.", Confidence: 0.8},
			},
			{
				AgentName:   "domain",
				Analysis:    agent.Analysis{Score: 6.5},
				Suggestions: agent.Suggestions{ImprovedPrompt: "You are a Python expert.", Confidence: 0.9},
				TokenUsage:  &tokens.Usage{TotalTokens: 270},
			},
		},
		VoteBreakdown: map[string]float64{"syntax": 5.6, "domain": 7.02},
		TotalTokens:   270,
	}

	dir, err := Write(base, "Write a sort function", d, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "dec-e2e"), dir)

	var rec DecisionRecord
	readJSON(t, filepath.Join(dir, "decision.json"), &rec)
	assert.Equal(t, "domain", rec.SelectedAgent)
	assert.Equal(t, 270, rec.TotalTokens)
	assert.Equal(t, []string{"syntax", "domain"}, rec.Agents)
	assert.False(t, rec.Degraded, "a decision with usage is not degraded")

	prompt, err := os.ReadFile(filepath.Join(dir, rec.PromptRef))
	require.NoError(t, err)
	assert.Equal(t, "Write a sort function", string(prompt))

	var domain AgentRecord
	readJSON(t, filepath.Join(dir, "agents", "domain.json"), &domain)
	assert.InDelta(t, 7.02, domain.Vote, 1e-9)
	require.NotNil(t, domain.TokenUsage)
	assert.Equal(t, 270, domain.TokenUsage.TotalTokens)

	improved, err := os.ReadFile(filepath.Join(dir, domain.ImprovedPromptRef))
	require.NoError(t, err)
	assert.Equal(t, d.FinalPrompt, string(improved))
}

func TestSignedBundle(t *testing.T) {
	base := t.TempDir()
	keyDir := filepath.Join(base, "keys")
	signer, err := crypto.NewSigner(keyDir, "promptforge")
	require.NoError(t, err)

	d := &coordinator.Decision{
		ID:            "dec-signed",
		FinalPrompt:   "p",
		SelectedAgent: "syntax",
		AgentResults:  []agent.Result{{AgentName: "syntax"}},
		VoteBreakdown: map[string]float64{"syntax": 2.5},
	}
	dir, err := Write(base, "p", d, signer)
	require.NoError(t, err)
	require.NoError(t, Verify(dir, keyDir))

	path := filepath.Join(dir, "decision.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"syntax"`, `"domain"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))
	assert.Error(t, Verify(dir, keyDir), "tampered decision must not verify")
}

func TestVerifyUnsignedBundle(t *testing.T) {
	base := t.TempDir()
	d := &coordinator.Decision{ID: "dec-unsigned", VoteBreakdown: map[string]float64{}}
	dir, err := Write(base, "p", d, nil)
	require.NoError(t, err)
	assert.Error(t, Verify(dir, filepath.Join(base, "keys")), "missing signature")
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), path)
}

func assertPerm(t *testing.T, path string, expected os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, expected, info.Mode().Perm(), path)
}
