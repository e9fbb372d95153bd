package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/globaltime"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	retention := fs.Duration("retention", 0, "Delete untracked articles first seen longer ago than this (default from config)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sweep does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, cfg, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	articleRetention := *retention
	if articleRetention <= 0 {
		articleRetention = cfg.ArticleRetention
	}

	now := globaltime.Now().UTC()

	embeddings, err := pool.DeleteExpiredEmbeddings(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to expire embeddings: %v\n", err)
		return 1
	}
	matchResults, err := pool.DeleteExpiredMatchResults(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to expire match results: %v\n", err)
		return 1
	}
	articles, err := pool.DeleteExpiredArticles(ctx, now.Add(-articleRetention))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to expire articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		summary := map[string]int64{
			"embeddings_deleted":    embeddings,
			"match_results_deleted": matchResults,
			"articles_deleted":      articles,
		}
		if err := printJSON(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"embeddings_deleted", fmt.Sprintf("%d", embeddings)},
		{"match_results_deleted", fmt.Sprintf("%d", matchResults)},
		{"articles_deleted", fmt.Sprintf("%d", articles)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
