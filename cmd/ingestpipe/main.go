// Command ingestpipe drives one batch ingestion run: list candidate videos
// from a channel, a URL list, a JSON file, or a local directory; acquire,
// transcribe, diarize, identify speakers, segment, embed, and persist each
// one through the bounded three-stage pipeline in internal/pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
