// cmd/useradd/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"lending/internal/auth"
	"lending/internal/config"
	"lending/internal/store"
)

func main() {
	email := flag.String("email", "", "email of the new user")
	password := flag.String("password", "", "password of the new user")
	staff := flag.Bool("staff", false, "grant staff rights")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatalf("-email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, store.Options{MaxOpenConns: 2})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	svc := auth.NewService(auth.NewRepository(db), nil, 0)
	user, err := svc.Register(ctx, *email, *password, *staff)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("created user %d (%s, staff=%t)\n", user.ID, user.Email, user.IsStaff)
}
