package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigUsesFileAPIKeysWhenEnvUnset(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	writeFile(t, filepath.Join(home, DirName, "config.yaml"),
		"api_keys:\n  groq: file-groq\n  openai: file-openai\n  anthropic: file-ant\n  google: file-google\n")

	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-groq", cfg.GroqAPIKey)
	assert.Equal(t, "file-openai", cfg.OpenAIAPIKey)
	assert.Equal(t, "file-ant", cfg.AnthropicAPIKey)
	assert.Equal(t, "file-google", cfg.GoogleAPIKey)
}

func TestConfigEnvAPIKeysTakePrecedence(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	writeFile(t, filepath.Join(home, DirName, "config.yaml"), "api_keys:\n  groq: file-groq\n")

	t.Setenv("GROQ_API_KEY", "env-groq")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("ANTHROPIC_API_KEY", "env-ant")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-groq", cfg.GroqAPIKey)
	assert.Equal(t, "env-openai", cfg.OpenAIAPIKey)
	assert.Equal(t, "env-ant", cfg.AnthropicAPIKey)

	assert.True(t, cfg.HasAdapter("groq"))
	assert.False(t, cfg.HasAdapter("google"))
	assert.False(t, cfg.HasAdapter("deepseek"))
}

func TestLoadDefaultsWithoutSettingsFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings
	assert.Equal(t, []string{"syntax", "structure", "domain"}, s.Agents)
	assert.Equal(t, 120*time.Second, s.Timeout())

	p := s.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseBackoff)
	assert.Equal(t, 8*time.Second, p.MaxBackoff)

	assert.Equal(t, filepath.Join(home, DirName, "usage.db"), s.UsageDB)
	assert.Empty(t, s.EvidenceDir, "evidence is disabled by default")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(cfg.ConfigDir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	}
}

func TestLoadSettingsFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	writeFile(t, filepath.Join(home, DirName, "settings.yaml"), `
agents: [domain, syntax]
weights:
  domain: 1.2
timeout_seconds: 0
retry:
  max_attempts: 5
  base_backoff_ms: 10
  max_backoff_ms: 5
pricing:
  custom-model:
    input_per_million: 2
    output_per_million: 4
models:
  powerful:
    model_id: claude-sonnet-4-20250514
    provider: anthropic
agent_models:
  syntax: balanced
cache:
  enabled: true
usage_db: data/usage.db
evidence_dir: evidence
log:
  level: debug
  format: json
`)

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings
	assert.Equal(t, []string{"domain", "syntax"}, s.Agents)
	assert.InDelta(t, 1.2, s.Weights["domain"], 1e-9)
	assert.Zero(t, s.Timeout(), "explicit zero timeout disables the deadline")

	p := s.RetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, p.MaxBackoff)

	assert.True(t, s.Cache.Enabled)
	assert.Equal(t, time.Hour, s.CacheTTL())
	assert.Equal(t, filepath.Join(home, DirName, "data", "usage.db"), s.UsageDB)
	assert.Equal(t, filepath.Join(home, DirName, "evidence"), s.EvidenceDir)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)

	reg, err := s.ModelRegistry()
	require.NoError(t, err)
	m := reg.ForAgent("domain")
	assert.Equal(t, "claude-sonnet-4-20250514", m.ModelID)
	assert.Equal(t, "anthropic", m.Provider)
	assert.Equal(t, "balanced", reg.KeyForAgent("syntax"))

	tr := s.Tracker()
	assert.InDelta(t, 6.0, tr.CalculateCost(1_000_000, 1_000_000, "custom-model"), 1e-9)
}

func TestLoadSettingsRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"negative weight":  "weights:\n  syntax: -1\n",
		"negative timeout": "timeout_seconds: -5\n",
		"unknown mapping":  "agent_models:\n  syntax: missing\n",
		"negative price":   "pricing:\n  m:\n    input_per_million: -1\n",
		"malformed yaml":   "agents: [unterminated\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			writeFile(t, path, content)
			_, err := LoadSettings(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadWithMissingSettingsFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	_, err := LoadWithSettingsFile(filepath.Join(home, "nope.yaml"))
	assert.Error(t, err, "an explicit settings file must exist")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}
