// Package cmd provides the skyrules CLI commands.
//
// Commands:
//   - ask: answer a pilot's question (classify, retrieve or compare,
//     synthesize)
//   - compare: rank regulatory differences between countries
//   - index: rebuild the vector store from the rule corpus
//
// Signal handling and graceful shutdown work via context cancellation
// for all commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skyrules/skyrules/internal/log"
)

// Execute is the main entry point for the skyrules CLI.
func Execute() error {
	// Initialize the logger once at entry point.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "ask":
		return runAsk(ctx, logger, os.Args[2:])
	case "compare":
		return runCompare(ctx, logger, os.Args[2:])
	case "index":
		return runIndex(ctx, logger, os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("skyrules - Aviation rules assistant for general-aviation pilots")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  skyrules ask <question>                 Answer a rules question")
	fmt.Println("  skyrules compare [--tag t] <CC> <CC>..  Compare rules between countries (ISO-2 codes)")
	fmt.Println("  skyrules index [corpus.json]            Rebuild the vector store from the corpus")
	fmt.Println("  skyrules --version                      Show version information")
	fmt.Println("  skyrules --help                         Show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  skyrules ask \"Is night VFR permitted in France?\"")
	fmt.Println("  skyrules compare --tag customs FR DE")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required for the gemini provider")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL connection override")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
}
