package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"lorekit/internal/compose"
	"lorekit/internal/lore"
)

var (
	composeVariant  string
	composeMax      int
	composePolicy   string
	composePreserve []string
	composeInput    string
	composeHistory  string
	composeSeed     int64
	composeDepth    int
	composePretty   bool
	composeStats    bool
	composeJSON     bool
)

var composeCmd = &cobra.Command{
	Use:   "compose <card.json>",
	Short: "Compose a prompt from a character card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadCard(args[0])
		if err != nil {
			return err
		}
		history, err := loadHistory(composeHistory)
		if err != nil {
			return err
		}

		opts := composeOptions(history)
		comp, err := newCompositor().Compose(profile, effectiveVariant(), opts)
		if err != nil {
			return err
		}

		switch {
		case composeJSON:
			return printJSON(comp)
		case composeStats:
			printSegmentTable(comp)
			return nil
		case composePretty:
			return renderPretty(comp.Text())
		default:
			fmt.Println(comp.Text())
			if comp.OverBudget {
				fmt.Fprintln(os.Stderr, "warning: preserved segments exceed the token budget")
			}
			return nil
		}
	},
}

func init() {
	composeCmd.Flags().StringVar(&composeVariant, "variant", "", "profile variant (v2|legacy)")
	composeCmd.Flags().IntVar(&composeMax, "max-tokens", 0, "token budget (0 = config default, negative = unbudgeted)")
	composeCmd.Flags().StringVar(&composePolicy, "drop-policy", "", "eviction policy (truncate-end|oldest-first|lowest-priority)")
	composeCmd.Flags().StringSliceVar(&composePreserve, "preserve", nil, "segment names never dropped or truncated")
	composeCmd.Flags().StringVar(&composeInput, "input", "", "activation probe text (default: card greeting)")
	composeCmd.Flags().StringVar(&composeHistory, "history", "", "JSON file of chat turns, oldest first")
	composeCmd.Flags().Int64Var(&composeSeed, "seed", 0, "seed for probability draws")
	composeCmd.Flags().IntVar(&composeDepth, "scan-depth", 0, "history turns to scan (0 = book default)")
	composeCmd.Flags().BoolVar(&composePretty, "pretty", false, "render the prompt as markdown")
	composeCmd.Flags().BoolVar(&composeStats, "stats", false, "print a segment/token table instead of the prompt")
	composeCmd.Flags().BoolVar(&composeJSON, "json", false, "emit the full composition as JSON")
	rootCmd.AddCommand(composeCmd)
}

func effectiveVariant() string {
	if composeVariant != "" {
		return composeVariant
	}
	return cfg.Compose.Variant
}

// composeOptions merges command flags with config defaults.
func composeOptions(history []lore.Turn) compose.Options {
	opts := compose.Options{
		Input:     composeInput,
		History:   history,
		Seed:      composeSeed,
		ScanDepth: composeDepth,
	}
	if opts.ScanDepth == 0 {
		opts.ScanDepth = cfg.Compose.ScanDepth
	}

	maxTokens := composeMax
	if maxTokens == 0 {
		maxTokens = cfg.Compose.MaxTokens
	}
	if maxTokens > 0 {
		policy := composePolicy
		if policy == "" {
			policy = cfg.Compose.DropPolicy
		}
		preserve := composePreserve
		if len(preserve) == 0 {
			preserve = cfg.Compose.PreserveFields
		}
		opts.Budget = &compose.Budget{
			MaxTokens:      maxTokens,
			Policy:         compose.DropPolicy(policy),
			PreserveFields: preserve,
		}
	}
	return opts
}

// printSegmentTable renders a lipgloss table of segments and token counts.
func printSegmentTable(comp *compose.Composition) {
	header := lipgloss.NewStyle().Bold(true)
	dim := lipgloss.NewStyle().Faint(true)

	fmt.Println(header.Render(fmt.Sprintf("%-28s %-14s %8s", "SEGMENT", "SOURCE", "TOKENS")))
	for _, s := range comp.Segments {
		fmt.Printf("%-28s %-14s %8d\n", s.Name, s.Source, s.Tokens)
	}
	for _, s := range comp.Dropped {
		fmt.Println(dim.Render(fmt.Sprintf("%-28s %-14s %8d (dropped)", s.Name, s.Source, s.Tokens)))
	}
	fmt.Println(header.Render(fmt.Sprintf("%-43s %8d", "TOTAL", comp.TotalTokens)))
	if comp.OverBudget {
		fmt.Println(header.Render("over budget: preserved segments exceed the ceiling"))
	}
}

// renderPretty renders the prompt text as markdown via glamour.
func renderPretty(text string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(text)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
