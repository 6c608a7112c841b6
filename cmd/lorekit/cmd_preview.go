package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	previewField   string
	previewValue   string
	previewVariant string
	previewJSON    bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <card.json>",
	Short: "Preview the token impact of a field change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadCard(args[0])
		if err != nil {
			return err
		}

		variant := previewVariant
		if variant == "" {
			variant = cfg.Compose.Variant
		}
		pv, err := newCompositor().PreviewFieldChange(profile, previewField, previewValue, variant, composeOptions(nil))
		if err != nil {
			return err
		}

		if previewJSON {
			return printJSON(pv)
		}
		fmt.Printf("original: %d tokens\n", pv.Original.TotalTokens)
		fmt.Printf("modified: %d tokens\n", pv.Modified.TotalTokens)
		fmt.Printf("delta:    %+d tokens\n", pv.TokenDelta)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewField, "field", "", "field to replace (required)")
	previewCmd.Flags().StringVar(&previewValue, "value", "", "replacement text")
	previewCmd.Flags().StringVar(&previewVariant, "variant", "", "profile variant (default from config)")
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "emit both compositions as JSON")
	_ = previewCmd.MarkFlagRequired("field")
	rootCmd.AddCommand(previewCmd)
}
