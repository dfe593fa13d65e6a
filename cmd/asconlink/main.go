package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

var (
	// Build-time variables set by go build -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(buildInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
