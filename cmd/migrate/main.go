package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/migrations"
)

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		direction = flag.String("direction", storage.MigrateUp, "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if *dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx := context.Background()
	store, err := storage.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	done, err := storage.Migrate(ctx, store.Pool(), migrations.FS, *direction, *steps)
	if err != nil {
		slog.Error("migration failed", "error", err, "applied", done)
		os.Exit(1)
	}

	if len(done) == 0 {
		slog.Info("no migrations to apply")
		return
	}
	slog.Info("migrations complete", "count", len(done), "direction", *direction)
}
