package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/logging"
	"horse.fit/vantage/internal/matching"
	"horse.fit/vantage/internal/urlnorm"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: match [flags] <article-url>")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	articleKey, _, err := urlnorm.Canonicalize(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid article URL: %v\n", err)
		return 2
	}

	ctx, cancel, pool, cfg, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	orchestrator := newOrchestrator(cfg, pool, logger)
	result, err := orchestrator.FindMatches(ctx, articleKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("method=%s from_cache=%t matches=%d\n", result.Method, result.FromCache, result.Total())
	rows := make([][]string, 0, result.Total())
	appendBucket := func(bucket string, matches []matching.Match) {
		for _, match := range matches {
			rows = append(rows, []string{
				bucket,
				truncateForTable(match.Article.SourceName, 24),
				truncateForTable(match.Article.Title, 60),
				fmt.Sprintf("%.3f", match.Score),
				string(match.Strength),
				formatUTCTimestamp(match.Article.PublishedAt),
			})
		}
	}
	appendBucket("left", result.Left)
	appendBucket("center", result.Center)
	appendBucket("right", result.Right)
	appendBucket("unrated", result.Unrated)

	if len(rows) == 0 {
		fmt.Println("no coverage found")
		return 0
	}
	if err := writeTable([]string{"bucket", "source", "title", "score", "strength", "published"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
