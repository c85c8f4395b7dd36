package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyrules/skyrules/internal/app"
	"github.com/skyrules/skyrules/internal/config"
	"github.com/skyrules/skyrules/internal/country"
)

// parseCompareArgs extracts the optional --tag flag and the ISO-2 codes.
func parseCompareArgs(args []string) (tag string, countries []string, err error) {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.StringVar(&tag, "tag", "", "restrict the comparison to one topic tag")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}

	for _, arg := range fs.Args() {
		code := strings.ToUpper(strings.TrimSpace(arg))
		if !country.IsValidCode(code) {
			return "", nil, fmt.Errorf("unknown country code %q", arg)
		}
		countries = append(countries, code)
	}
	if len(countries) < 2 {
		return "", nil, fmt.Errorf("usage: skyrules compare [--tag t] <CC> <CC> [...]")
	}
	return tag, countries, nil
}

// runCompare ranks regulatory differences between countries.
func runCompare(ctx context.Context, logger *slog.Logger, args []string) error {
	tag, countries, err := parseCompareArgs(args)
	if err != nil {
		return err
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

	resp, err := a.Pipe.Compare(ctx, countries, tag)
	if err != nil {
		logger.Error("comparison failed", "error", err)
		fmt.Println("Sorry, I couldn't compare those countries.")
		return err
	}

	fmt.Println(resp.Answer)
	if resp.Comparison != nil && len(resp.Comparison.Differences) > 0 {
		fmt.Println()
		fmt.Println("Ranked differences:")
		for _, d := range resp.Comparison.Differences {
			fmt.Printf("  %.3f  %s (%s vs %s)\n", d.Distance, d.QuestionText, d.CountryA, d.CountryB)
		}
	}
	return nil
}
