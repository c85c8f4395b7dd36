package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyrules/skyrules/internal/app"
	"github.com/skyrules/skyrules/internal/config"
)

// runAsk answers a single question from the command line.
func runAsk(ctx context.Context, logger *slog.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: skyrules ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	resp, err := a.Pipe.Ask(ctx, []string{question})
	if err != nil {
		logger.Error("request failed", "error", err)
		fmt.Println("Sorry, I couldn't process that question.")
		return err
	}

	fmt.Println(resp.Answer)
	return nil
}
