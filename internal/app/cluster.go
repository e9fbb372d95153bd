package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/clustering"
	"horse.fit/vantage/internal/logging"
	"horse.fit/vantage/internal/rating"
)

func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	lookback := fs.Duration("lookback", 0, "How far back to consider unassigned articles (default from config)")
	limit := fs.Int("limit", 0, "Maximum candidates per sweep (0 = engine default)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "cluster does not accept positional arguments")
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

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	sweepLookback := *lookback
	if sweepLookback <= 0 {
		sweepLookback = cfg.ClusterLookback
	}

	engine := clustering.NewEngine(
		pool,
		newEmbeddingCache(cfg, pool, logger),
		rating.NewResolver(pool),
		cfg.EmbeddingModelName,
		cfg.EmbeddingModelVersion,
		logger,
	)
	evaluations, err := engine.Run(ctx, clustering.Options{
		Lookback:       sweepLookback,
		CandidateLimit: *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cluster sweep failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(evaluations); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	joined := 0
	rows := make([][]string, 0, len(evaluations))
	for _, eval := range evaluations {
		if eval.Joined {
			joined++
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", eval.StoryID),
			truncateForTable(eval.ArticleKey, 60),
			fmt.Sprintf("%.3f", eval.Score),
			string(eval.Strength),
			fmt.Sprintf("%t", eval.Joined),
			fmt.Sprintf("%t", eval.IsNovel),
			fmt.Sprintf("%t", eval.HasNewPerspective),
		})
	}

	fmt.Printf("evaluated=%d joined=%d\n", len(evaluations), joined)
	if len(rows) == 0 {
		return 0
	}
	if err := writeTable([]string{"story", "article", "score", "strength", "joined", "novel", "new_perspective"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
