// lorekit composes character-card prompts: it scans chat context against a
// card's lorebook, activates matching entries, and assembles the final
// prompt inside a token budget.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lorekit/internal/card"
	"lorekit/internal/compose"
	"lorekit/internal/config"
	"lorekit/internal/logging"
	"lorekit/internal/lore"
	"lorekit/internal/tokens"
)

var (
	cfgPath string
	verbose bool
	model   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lorekit",
	Short: "lorekit - character card and lorebook prompt composer",
	Long: `lorekit is a deterministic prompt composition engine for character
cards. It activates lorebook entries against conversational context and
assembles profile fields plus activated lore inside a hard token budget.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if model != "" {
			cfg.Estimator.Model = model
		}
		return logging.Init(cfg.Logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "estimator model family (default from config)")
}

// newCompositor builds a compositor from the effective config.
func newCompositor() *compose.Compositor {
	return compose.New(tokens.ForModel(cfg.Estimator.Model))
}

// loadCard reads and decodes a card file in either supported shape.
func loadCard(path string) (*card.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card: %w", err)
	}
	return card.Decode(data)
}

// loadHistory reads a JSON array of {"role","text"} turns, oldest first.
func loadHistory(path string) ([]lore.Turn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []lore.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return turns, nil
}

// printJSON renders any value as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
