// cmd/racecheck/main.go
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
	"lending/internal/config"
	"lending/internal/memstore"
	"lending/internal/racecheck"
	"lending/internal/store"
)

func main() {
	exp := racecheck.Default()
	flag.IntVar(&exp.Copies, "copies", exp.Copies, "copies of the book on the shelf")
	flag.IntVar(&exp.Attempts, "attempts", exp.Attempts, "concurrent borrowing attempts")
	memory := flag.Bool("memory", false, "run against the in-memory store instead of Postgres")
	flag.Parse()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var target racecheck.Target
	if *memory {
		mem := memstore.New()
		target = racecheck.Target{
			Books:      mem.Catalog(),
			Users:      mem.Users(),
			Borrowings: borrowing.NewService(mem, mem.Borrowings(), mem.Catalog(), borrowing.WithLogger(logger)),
		}
	} else {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if err := cfg.ValidateDatabase(); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}

		db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, store.Options{MaxOpenConns: cfg.DBMaxOpenConns})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}

		books := catalog.NewRepository(db)
		target = racecheck.Target{
			Books: books,
			Users: auth.NewRepository(db),
			Borrowings: borrowing.NewService(
				borrowing.NewPostgresTransactor(db), borrowing.NewPostgresLedger(db), books,
				borrowing.WithLogger(logger),
			),
		}
	}

	res, err := racecheck.Run(ctx, target, exp)
	if err != nil {
		log.Fatalf("Race check failed to run: %v", err)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	if !res.HypothesisHeld {
		os.Exit(1)
	}
}
