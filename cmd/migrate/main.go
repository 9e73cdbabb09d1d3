package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudconsole/engine/internal/repository"
	"github.com/cloudconsole/engine/pkg/config"
	"github.com/cloudconsole/engine/pkg/database"
	"github.com/cloudconsole/engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(context.Background(), database.Options{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseURL, Verbose: true})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := repository.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
