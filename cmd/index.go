package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skyrules/skyrules/internal/app"
	"github.com/skyrules/skyrules/internal/config"
)

// runIndex rebuilds both vector collections from the corpus. An optional
// positional argument overrides the configured corpus path.
func runIndex(ctx context.Context, logger *slog.Logger, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.CorpusPath = args[0]
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	stats, err := a.Indexer.Rebuild(ctx, a.Corpus)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("Indexed %d questions (%d documents) in %s.\n",
		stats.Questions, stats.Documents, stats.Duration.Round(10*time.Millisecond))
	return nil
}
