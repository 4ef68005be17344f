// cmd/pagegraph-crawl/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/pagegraph-crawl/internal/cli"
)

func main() {
	// Cancel the run on interrupt so workers close their browsers and
	// proxies before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if ctx.Err() != nil {
			log.Warn().Msg("Interrupt received, shutting down gracefully...")
		}
	}()

	cli.Execute(ctx)
}
