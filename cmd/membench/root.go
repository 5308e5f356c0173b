package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"membench/internal/config"
	"membench/internal/errors"
	"membench/internal/llm"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func errorText(msg string) string  { return red("error: " + msg) }
func headerText(msg string) string { return bold(msg) }

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "membench",
	Short: "Benchmark stateless vs. memory-augmented terminal agents",
	Long: `membench runs command-line AI agents against datasets of terminal tasks,
grades the outcomes with each task's verification script, and reports
per-agent and per-arm (stateless vs. memory) metrics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isTTY() {
			color.NoColor = true
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		// Flags override config and env.
		if viper.GetString("model") != "" {
			cfg.Model.Name = viper.GetString("model")
		}
		if viper.GetInt("workers") > 0 {
			cfg.NumWorkers = viper.GetInt("workers")
		}
		if viper.GetString("output") != "" {
			cfg.OutputPath = viper.GetString("output")
		}
		if viper.GetInt("trials") > 0 {
			cfg.Trials = viper.GetInt("trials")
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.membench/config.yaml)")
	rootCmd.PersistentFlags().String("model", "", "model name override")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent trial workers")
	rootCmd.PersistentFlags().String("output", "", "output directory for reports and artifacts")
	rootCmd.PersistentFlags().Int("trials", 0, "trials per (task, agent, arm) cell")

	for _, name := range []string{"model", "workers", "output", "trials"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	viper.SetEnvPrefix("MEMBENCH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd, compareCmd, agentsCmd, tasksCmd, setupCmd)
}

// buildClient assembles the production model client: HTTP transport wrapped
// with retry + circuit breaker, and the response cache when enabled.
func buildClient() (llm.Client, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found; set %s or run 'membench setup'", keyEnvName())
	}

	client, err := llm.NewOpenAIClient(cfg.Model.Name, llm.Config{
		APIKey:  apiKey,
		BaseURL: cfg.Model.BaseURL,
		Timeout: cfg.Model.Timeout,
	})
	if err != nil {
		return nil, err
	}

	retryCfg := errors.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries + 1
	}
	wrapped := llm.WrapWithRetry(client, retryCfg, errors.DefaultCircuitBreakerConfig())

	if cfg.CacheEnabled {
		return llm.WrapWithCache(wrapped, llm.DefaultCacheConfig()), nil
	}
	return wrapped, nil
}

func keyEnvName() string {
	if cfg != nil && cfg.Model.APIKeyEnv != "" {
		return cfg.Model.APIKeyEnv
	}
	return "OPENAI_API_KEY"
}

func outputDir() string {
	return fmt.Sprintf("%s/%s", cfg.OutputPath, time.Now().Format("2006-01-02T15-04-05"))
}
