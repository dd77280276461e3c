package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/promptforge/pkg/config"
	"github.com/zen-systems/promptforge/pkg/coordinator"
	"github.com/zen-systems/promptforge/pkg/crypto"
	"github.com/zen-systems/promptforge/pkg/evidence"
	"github.com/zen-systems/promptforge/pkg/llm"
	"github.com/zen-systems/promptforge/pkg/logging"
	"github.com/zen-systems/promptforge/pkg/tokens"
	"github.com/zen-systems/promptforge/pkg/usage"
)

// signingKeyID names the key used for evidence signatures.
const signingKeyID = "promptforge"

// executionReport is the --json output of coordinate --execute.
type executionReport struct {
	Decision   *coordinator.Decision     `json:"decision"`
	Comparison *tokens.ComparisonMetrics `json:"comparison"`
}

var (
	configFile string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := newRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "promptforge",
		Short: "Multi-agent prompt improvement with weighted voting and cost tracking",
		Long: `Promptforge runs several specialised agents on a prompt in parallel.
Each agent scores the prompt from its own angle and proposes a rewrite; the
coordinator picks the rewrite with the highest weighted score and reports the
tokens and cost spent on every model call.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to settings file (default ~/.promptforge/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(coordinateCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(verifyCmd())
	return rootCmd
}

func coordinateCmd() *cobra.Command {
	var (
		agentsFlag  []string
		weightFlags []string
		timeoutFlag time.Duration
		jsonFlag    bool
		mockFlag    bool
		evidenceDir string
		signFlag    bool
		noUsage     bool
		executeFlag bool
		execModel   string
	)

	cmd := &cobra.Command{
		Use:   "coordinate [prompt]",
		Short: "Improve a prompt with the configured agents",
		Long: `Runs every configured agent on the prompt and prints the winning rewrite.

Pass "-" or no argument to read the prompt from stdin.
Use --mock to run without provider API keys.
Use --execute to also run the original and the winning prompt and compare
their token cost.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			settings := cfg.Settings
			logger := newLogger(settings, cmd.ErrOrStderr())

			rt, err := newApp(cmd.Context(), cfg, logger, mockFlag)
			if err != nil {
				return fmt.Errorf("failed to initialise: %w", err)
			}
			defer rt.Close()

			weights, err := parseWeights(weightFlags)
			if err != nil {
				return err
			}
			merged := make(map[string]float64, len(settings.Weights)+len(weights))
			for k, v := range settings.Weights {
				merged[k] = v
			}
			for k, v := range weights {
				merged[k] = v
			}

			timeout := settings.Timeout()
			if cmd.Flags().Changed("timeout") {
				timeout = timeoutFlag
			}

			names := settings.Agents
			if len(agentsFlag) > 0 {
				names = agentsFlag
			}

			coord, err := coordinator.NewFromRegistry(rt.agents, names,
				coordinator.WithWeights(merged),
				coordinator.WithTimeout(timeout),
				coordinator.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			decision, err := coord.Coordinate(cmd.Context(), prompt)
			if err != nil {
				return err
			}

			if !noUsage {
				if err := recordUsage(cmd.Context(), settings.UsageDB, decision); err != nil {
					logger.Warn("usage not recorded", "error", err)
				}
			}

			dir := settings.EvidenceDir
			if evidenceDir != "" {
				dir = evidenceDir
			}
			if dir != "" {
				var signer *crypto.Signer
				if signFlag {
					signer, err = crypto.NewSigner(keyDir(cfg), signingKeyID)
					if err != nil {
						return fmt.Errorf("failed to load signing key: %w", err)
					}
				}
				bundle, err := evidence.Write(dir, prompt, decision, signer)
				if err != nil {
					return fmt.Errorf("failed to write evidence: %w", err)
				}
				logger.Info("evidence written", "dir", bundle)
			}

			var comparison *tokens.ComparisonMetrics
			if executeFlag {
				model := rt.models.ForAgent(decision.SelectedAgent)
				if execModel != "" {
					m, ok := rt.models.Get(execModel)
					if !ok {
						return fmt.Errorf("unknown model %q", execModel)
					}
					model = m
				}
				m, err := rt.caller.CompareExecutions(cmd.Context(), model, prompt, decision.FinalPrompt, llm.Overhead{
					Tokens:  decision.TotalTokens,
					CostUSD: decision.TotalCostUSD,
				})
				if err != nil {
					return err
				}
				comparison = &m
			}

			if jsonFlag {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if comparison != nil {
					return enc.Encode(executionReport{Decision: decision, Comparison: comparison})
				}
				return enc.Encode(decision)
			}
			if err := printDecision(cmd.OutOrStdout(), decision); err != nil {
				return err
			}
			if comparison != nil {
				return printComparison(cmd.OutOrStdout(), comparison)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&agentsFlag, "agents", nil, "agents to run (default from settings)")
	cmd.Flags().StringArrayVar(&weightFlags, "weight", nil, "agent weight as name=value (repeatable)")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "coordination deadline, 0 disables (default from settings)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the decision as JSON")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "serve every model offline with canned replies")
	cmd.Flags().StringVar(&evidenceDir, "evidence-dir", "", "write a decision bundle under this directory")
	cmd.Flags().BoolVar(&signFlag, "sign", false, "sign the decision bundle with the local ed25519 key")
	cmd.Flags().BoolVar(&noUsage, "no-usage", false, "do not record token usage")
	cmd.Flags().BoolVar(&executeFlag, "execute", false, "run the original and improved prompts and compare their cost")
	cmd.Flags().StringVar(&execModel, "execute-model", "", "model key for --execute (default: the selected agent's model)")

	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			rt, err := newApp(cmd.Context(), cfg, newLogger(cfg.Settings, io.Discard), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tNAME\tMODEL\tPROVIDER\tFOCUS")
			for _, name := range rt.agents.Names() {
				md, _ := rt.agents.Metadata(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					name, md.DisplayName, md.Model.ModelID, md.Model.Provider, strings.Join(md.FocusAreas, ", "))
			}
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalogue and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := cfg.Settings.ModelRegistry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMODEL\tPROVIDER\tSPEED\tCOST\tMAX TOKENS\tTEMP\tSTATUS")
			for _, m := range reg.All() {
				status := "no key"
				switch {
				case m.Provider == "mock":
					status = "--mock only"
				case cfg.HasAdapter(m.Provider):
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.1f\t%s\n",
					m.Key, m.ModelID, m.Provider, m.Speed, m.Cost, m.MaxTokens, m.Temperature, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			mapping := reg.AgentMapping()
			agents := make([]string, 0, len(mapping))
			for name := range mapping {
				agents = append(agents, name)
			}
			sort.Strings(agents)
			fmt.Fprintln(cmd.OutOrStdout())
			for _, name := range agents {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", name, mapping[name])
			}
			return nil
		},
	}
}

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Summarise recorded token usage and cost per model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			store, err := usage.NewSQLiteStore(cfg.Settings.UsageDB)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read usage: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [bundle-dir]",
		Short: "Verify the signature of a decision bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := evidence.Verify(args[0], keyDir(cfg)); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature ok")
			return nil
		},
	}
}

func keyDir(cfg *config.Config) string {
	return filepath.Join(cfg.ConfigDir, "keys")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithSettingsFile(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Settings.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Settings.Log.Format = logFormat
	}
	return cfg, nil
}

func newLogger(s *config.Settings, out io.Writer) *slog.Logger {
	return logging.New(logging.Options{Level: s.Log.Level, Format: s.Log.Format, Output: out})
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}

func parseWeights(flags []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(flags))
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --weight %q: want name=value", f)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --weight %q: %w", f, err)
		}
		weights[strings.TrimSpace(name)] = v
	}
	return weights, nil
}

func recordUsage(ctx context.Context, path string, d *coordinator.Decision) error {
	store, err := usage.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = usage.RecordDecision(ctx, store, d)
	return err
}

func printDecision(out io.Writer, d *coordinator.Decision) error {
	fmt.Fprintln(out, d.FinalPrompt)
	fmt.Fprintln(out)
	fmt.Fprintln(out, d.Rationale)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSCORE\tCONFIDENCE\tVOTE\tTOKENS\tCOST (USD)")
	for _, r := range d.AgentResults {
		used, cost := 0, 0.0
		if r.TokenUsage != nil {
			used, cost = r.TokenUsage.TotalTokens, r.TokenUsage.CostUSD
		}
		marker := ""
		if r.AgentName == d.SelectedAgent {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%.1f\t%.2f\t%.2f\t%d\t%.6f\n",
			r.AgentName, marker, r.Analysis.Score, r.Suggestions.Confidence, d.VoteBreakdown[r.AgentName], used, cost)
	}
	fmt.Fprintf(w, "total\t\t\t\t%d\t%.6f\n", d.TotalTokens, d.TotalCostUSD)
	if err := w.Flush(); err != nil {
		return err
	}
	if d.Degraded() {
		fmt.Fprintln(out, "\nwarning: no agent produced a usable reply; the original prompt was kept")
	}
	return nil
}

func printComparison(out io.Writer, m *tokens.ComparisonMetrics) error {
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXECUTION\tPROMPT\tOUTPUT\tTOTAL\tCOST (USD)")
	fmt.Fprintf(w, "original\t%d\t%d\t%d\t%.6f\n", m.OriginalPromptTokens, m.OriginalOutputTokens, m.OriginalTotalTokens, m.OriginalCostUSD)
	fmt.Fprintf(w, "improved\t%d\t%d\t%d\t%.6f\n", m.ImprovedPromptTokens, m.ImprovedOutputTokens, m.ImprovedTotalTokens, m.ImprovedCostUSD)
	fmt.Fprintf(w, "improvement\t\t\t%d\t%.6f\n", m.ImprovementProcessTokens, m.ImprovementProcessCostUSD)
	fmt.Fprintf(w, "total\t\t\t%d\t%.6f\n", m.TotalTokensUsed, m.TotalCostUSD)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\noutput tokens %+d (%+.1f%%)\n", m.TokenDifference, m.TokenEfficiencyPercent)
	return nil
}

func printSummary(out io.Writer, summary []usage.ModelSummary) error {
	if len(summary) == 0 {
		fmt.Fprintln(out, "no usage recorded")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tRUNS\tPROMPT\tCOMPLETION\tTOTAL\tCOST (USD)")
	var runs, total int
	var cost float64
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.6f\n", s.Model, s.Runs, s.PromptTokens, s.CompletionTokens, s.TotalTokens, s.CostUSD)
		runs += s.Runs
		total += s.TotalTokens
		cost += s.CostUSD
	}
	fmt.Fprintf(w, "total\t%d\t\t\t%d\t%.6f\n", runs, total, cost)
	return w.Flush()
}
