package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/urlnorm"
)

func runFollow(args []string) int {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: follow [flags] <article-url>")
		return 2
	}

	articleKey, _, err := urlnorm.Canonicalize(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid article URL: %v\n", err)
		return 2
	}

	ctx, cancel, pool, _, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	storyID, err := pool.FollowArticle(ctx, articleKey, globaltime.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Follow failed: %v\n", err)
		return 1
	}

	fmt.Printf("story_id=%d\n", storyID)
	return 0
}
