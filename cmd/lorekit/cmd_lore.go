package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lorekit/internal/compose"
	"lorekit/internal/lore"
)

var (
	testInputText    string
	testInputHistory string
	testInputSeed    int64
	testInputDepth   int
	testInputJSON    bool
)

var testInputCmd = &cobra.Command{
	Use:   "test-input <card.json>",
	Short: "Probe lorebook activation for a given input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadCard(args[0])
		if err != nil {
			return err
		}
		history, err := loadHistory(testInputHistory)
		if err != nil {
			return err
		}

		res := newCompositor().TestInput(testInputText, profile.Book(), history, compose.Options{
			Seed:      testInputSeed,
			ScanDepth: testInputDepth,
		})

		if testInputJSON {
			return printJSON(activationReport(res))
		}
		printActivations("before_char", res.BeforeChar)
		printActivations("after_char", res.AfterChar)
		if len(res.Activations) == 0 {
			fmt.Println("no entries activated")
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <card.json>",
	Short: "Summarize a card's lorebook entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadCard(args[0])
		if err != nil {
			return err
		}
		return printJSON(lore.Stats(profile.Book()))
	},
}

func init() {
	testInputCmd.Flags().StringVar(&testInputText, "input", "", "probe text to scan")
	testInputCmd.Flags().StringVar(&testInputHistory, "history", "", "JSON file of chat turns, oldest first")
	testInputCmd.Flags().Int64Var(&testInputSeed, "seed", 0, "seed for probability draws")
	testInputCmd.Flags().IntVar(&testInputDepth, "scan-depth", 0, "history turns to scan (0 = book default)")
	testInputCmd.Flags().BoolVar(&testInputJSON, "json", false, "emit activations as JSON")
	rootCmd.AddCommand(testInputCmd)
	rootCmd.AddCommand(statsCmd)
}

type activationEntry struct {
	ID          int      `json:"id"`
	Name        string   `json:"name,omitempty"`
	Reason      string   `json:"reason"`
	MatchedKeys []string `json:"matched_keys,omitempty"`
	Position    string   `json:"position"`
}

type activationSummary struct {
	Activations []activationEntry `json:"activations"`
	BeforeChar  int               `json:"before_char"`
	AfterChar   int               `json:"after_char"`
}

func activationReport(res *lore.ScanResult) activationSummary {
	sum := activationSummary{
		BeforeChar: len(res.BeforeChar),
		AfterChar:  len(res.AfterChar),
	}
	for _, a := range res.Activations {
		pos := "before_char"
		if a.Entry.Position == lore.AfterChar {
			pos = "after_char"
		}
		sum.Activations = append(sum.Activations, activationEntry{
			ID:          a.Entry.ID,
			Name:        a.Entry.Name,
			Reason:      string(a.Reason),
			MatchedKeys: a.MatchedKeys,
			Position:    pos,
		})
	}
	return sum
}

func printActivations(group string, acts []lore.Activation) {
	for _, a := range acts {
		label := a.Entry.Name
		if label == "" {
			label = fmt.Sprintf("entry %d", a.Entry.ID)
		}
		fmt.Printf("%s  %-24s reason=%s keys=%v\n", group, label, a.Reason, a.MatchedKeys)
	}
}
