package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lorekit/internal/logging"
)

var watchVariant string

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory of cards and report token totals on change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		// Initial pass over every card in the directory.
		if err := recomposeAll(dir); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(dir); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.L(logging.CategoryWatch)
		log.Infow("watching", "dir", dir)

		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Warnw("watch error", "error", err)
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if !strings.HasSuffix(ev.Name, ".json") {
					continue
				}
				if err := recomposeOne(ev.Name); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", ev.Name, err)
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchVariant, "variant", "", "profile variant (default from config)")
	rootCmd.AddCommand(watchCmd)
}

// recomposeAll composes every card in dir concurrently, bounded to avoid
// thrashing on large directories.
func recomposeAll(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(4)
	for _, path := range paths {
		g.Go(func() error {
			if err := recomposeOne(path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func recomposeOne(path string) error {
	profile, err := loadCard(path)
	if err != nil {
		return err
	}

	variant := watchVariant
	if variant == "" {
		variant = cfg.Compose.Variant
	}
	comp, err := newCompositor().Compose(profile, variant, composeOptions(nil))
	if err != nil {
		return err
	}
	fmt.Printf("%-40s %6d tokens  %d segments\n", filepath.Base(path), comp.TotalTokens, len(comp.Segments))
	return nil
}
