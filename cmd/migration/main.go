package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
	"gitlab.com/dirk.krummacker/personas-service/internal/database"
	"gitlab.com/dirk.krummacker/personas-service/internal/logger"
)

// Usage example on the command line:
// > DB_HOST=localhost DB_USER=dirk DB_PASSWORD=bullo92 DB_NAME=agenda go run main.go -file=../../scripts/personas.sql
//
// The service never creates its table. This tool prepares development and test databases.
func main() {
	filePtr := flag.String("file", "personas.sql", "the sql file to execute")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := migrate(*filePtr, cfg, log); err != nil {
		log.Error().Err(err).Str("file", *filePtr).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Str("file", *filePtr).Msg("migration finished")
}

// migrate applies the script to the configured database. The pool is closed on every return
// path, and a failed close fails the migration.
func migrate(file string, cfg *config.Config, log zerolog.Logger) (err error) {
	readFile, err := os.Open(file) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()

	pool, err := database.Open(context.Background(), cfg.Database, logger.Component(log, "migration"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pool.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return pool.ExecScript(context.Background(), readFile)
}
