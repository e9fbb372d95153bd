package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/ingest"
	"horse.fit/vantage/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	feedsFlag := fs.String("feeds", "", "Comma-separated feed URLs (in addition to positional arguments)")
	feedsFile := fs.String("feeds-file", "", "Path to a file with one feed URL per line")
	extract := fs.Bool("extract", false, "Fetch and store readable text for newly inserted articles")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	feedURLs, err := collectFeedURLs(fs.Args(), *feedsFlag, *feedsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if len(feedURLs) == 0 {
		fmt.Fprintln(os.Stderr, "at least one feed URL is required (positional, --feeds or --feeds-file)")
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

	ingestor := ingest.NewIngestor(pool, logger)
	result, err := ingestor.Run(ctx, feedURLs, ingest.Options{ExtractText: *extract})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"feeds", fmt.Sprintf("%d", result.Feeds)},
		{"items", fmt.Sprintf("%d", result.Items)},
		{"inserted", fmt.Sprintf("%d", result.Inserted)},
		{"duplicate", fmt.Sprintf("%d", result.Duplicate)},
		{"skipped", fmt.Sprintf("%d", result.Skipped)},
		{"extracted", fmt.Sprintf("%d", result.Extracted)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func collectFeedURLs(positional []string, commaSeparated, filePath string) ([]string, error) {
	seen := make(map[string]struct{})
	var urls []string
	add := func(raw string) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		if _, dup := seen[trimmed]; dup {
			return
		}
		seen[trimmed] = struct{}{}
		urls = append(urls, trimmed)
	}

	for _, raw := range positional {
		add(raw)
	}
	for _, raw := range strings.Split(commaSeparated, ",") {
		add(raw)
	}
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feeds file %q: %w", path, err)
		}
		for _, line := range strings.Split(string(payload), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			add(line)
		}
	}
	return urls, nil
}
