package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lorekit/internal/card"
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Manage standalone lorebooks in the store",
}

var booksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored lorebook names",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		names, err := s.ListBooks()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var booksPutCmd = &cobra.Command{
	Use:   "put <book.json>",
	Short: "Store a lorebook file (validates before writing)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		book, err := card.DecodeBook(data)
		if err != nil {
			return err
		}

		name := book.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), ".json")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.PutBook(name, book); err != nil {
			return err
		}
		fmt.Println(name)
		return nil
	},
}

var booksGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored lorebook as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		book, err := s.GetBook(args[0])
		if err != nil {
			return err
		}
		return printJSON(book)
	},
}

func init() {
	booksCmd.PersistentFlags().StringVar(&cardsDB, "db", "", "store path (default from config)")
	booksCmd.AddCommand(booksListCmd, booksPutCmd, booksGetCmd)
	rootCmd.AddCommand(booksCmd)
}
