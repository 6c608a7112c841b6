package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lorekit/internal/card"
	"lorekit/internal/store"
)

var cardsDB string

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage the card store",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := s.ListCards()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-24s %-14s %s\n", rec.ID, rec.Name, rec.Spec, rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var cardsPutCmd = &cobra.Command{
	Use:   "put <card.json>",
	Short: "Store a card file (validates before writing)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		profile, err := card.Decode(body)
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.PutCard("", profile.Name(), string(profile.Spec()), body)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var cardsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored card's JSON body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.GetCard(args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(rec.Body)
		return err
	},
}

var cardsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		return s.DeleteCard(args[0])
	},
}

func init() {
	cardsCmd.PersistentFlags().StringVar(&cardsDB, "db", "", "store path (default from config)")
	cardsCmd.AddCommand(cardsListCmd, cardsPutCmd, cardsGetCmd, cardsDeleteCmd)
	rootCmd.AddCommand(cardsCmd)
}

func openStore() (*store.Store, error) {
	path := cardsDB
	if path == "" {
		path = cfg.Store.Path
	}
	return store.Open(path)
}
