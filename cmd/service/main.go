package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
	"gitlab.com/dirk.krummacker/personas-service/internal/logger"
	"gitlab.com/dirk.krummacker/personas-service/internal/server"
)

// Usage example on the command line:
// > PORT=8080 DB_HOST=localhost DB_USER=dirk DB_PASSWORD=bullo92 DB_NAME=agenda GIN_LOGGING=off go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("could not create server")
		os.Exit(1)
	}
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
