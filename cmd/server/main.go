// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
	"lending/internal/config"
	"lending/internal/httpapi"
	"lending/internal/memstore"
	"lending/internal/notify"
	"lending/internal/store"
	"lending/internal/telemetry"
)

// backend is the set of stores the services run on.
type backend struct {
	books  catalog.Store
	reader borrowing.Reader
	tx     borrowing.Transactor
	users  auth.UserStore
	db     httpapi.Pinger
	close  func() error
}

func main() {
	seedEmail := flag.String("seed-email", "", "with STORE=memory, create a staff user with this email")
	seedPassword := flag.String("seed-password", "", "password for -seed-email")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer be.close()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(be.users, tokens, cfg.LoginRatePerMinute)

	if *seedEmail != "" && cfg.Store == "memory" {
		if _, err := authSvc.Register(ctx, *seedEmail, *seedPassword, true); err != nil {
			log.Fatalf("Failed to seed user: %v", err)
		}
		logger.Info("seeded staff user", "email", *seedEmail)
	}

	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sink = notify.NewTelegramSink(notify.TelegramConfig{
			Token:  cfg.TelegramBotToken,
			ChatID: cfg.TelegramChatID,
		})
	}
	dispatcher := notify.NewDispatcher(sink, logger, cfg.NotifyQueueSize, cfg.NotifyWorkers)

	catalogSvc := catalog.NewService(be.books)
	borrowingSvc := borrowing.NewService(be.tx, be.reader, be.books,
		borrowing.WithClock(borrowing.SystemClock{Location: cfg.Location()}),
		borrowing.WithNotifier(dispatcher),
		borrowing.WithLogger(logger),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:     logger,
		Tokens:     tokens,
		Auth:       auth.NewHandler(authSvc, logger),
		Books:      catalog.NewHandler(catalogSvc, logger),
		Borrowings: borrowing.NewHandler(borrowingSvc, logger),
		DB:         be.db,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting lending service", "port", cfg.Port, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification drain", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", "error", err)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.Store == "memory" {
		mem := memstore.New()
		return &backend{
			books:  mem.Catalog(),
			reader: mem.Borrowings(),
			tx:     mem,
			users:  mem.Users(),
			close:  func() error { return nil },
		}, nil
	}

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, store.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &backend{
		books:  catalog.NewRepository(db),
		reader: borrowing.NewPostgresLedger(db),
		tx:     borrowing.NewPostgresTransactor(db),
		users:  auth.NewRepository(db),
		db:     db,
		close:  db.Close,
	}, nil
}
