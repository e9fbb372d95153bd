package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "match":
		return runMatch(args[1:])
	case "cluster":
		return runCluster(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "follow":
		return runFollow(args[1:])
	case "stories":
		return runStories(args[1:])
	case "ratings":
		return runRatings(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "vantage CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  vantage <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health   Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest   Fetch RSS feeds and upsert their articles")
	fmt.Fprintln(os.Stderr, "  match    Find cross-outlet coverage for an article URL")
	fmt.Fprintln(os.Stderr, "  cluster  Run one story-cluster sweep over recent articles")
	fmt.Fprintln(os.Stderr, "  sweep    Expire cached embeddings, match results and old articles")
	fmt.Fprintln(os.Stderr, "  follow   Seed a tracked story from an article URL")
	fmt.Fprintln(os.Stderr, "  stories  List tracked stories with unread counts")
	fmt.Fprintln(os.Stderr, "  ratings  Validate or load a source-rating dataset")
	fmt.Fprintln(os.Stderr, "  serve    Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"vantage <command> -h\" for command-specific flags.")
}
