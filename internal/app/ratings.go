package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/rating"
)

func runRatings(args []string) int {
	fs := flag.NewFlagSet("ratings", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	file := fs.String("file", "", "Path to the source-rating dataset JSON")
	validateOnly := fs.Bool("validate-only", false, "Validate the dataset without touching the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ratings does not accept positional arguments")
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read dataset: %v\n", err)
		return 2
	}

	dataset, err := rating.ValidateDataset(json.RawMessage(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dataset is invalid: %v\n", err)
		return 2
	}

	if *validateOnly {
		fmt.Printf("dataset ok: version=%s sources=%d\n", dataset.DatasetVersion, len(dataset.Sources))
		return 0
	}

	ctx, cancel, pool, _, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	loaded, err := rating.LoadDataset(ctx, pool, json.RawMessage(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		return 1
	}

	fmt.Printf("loaded %d source ratings (version=%s)\n", loaded, dataset.DatasetVersion)
	return 0
}
