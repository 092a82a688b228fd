package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"taskhub.org/internal/config"
	"taskhub.org/internal/migrate"
)

func main() {
	cfg := config.MigrateFromEnv()
	var (
		migrationsDir = flag.String("migrations", cfg.MigrationsDir, "directory with *.up.sql files")
		seedsDir      = flag.String("seeds", cfg.SeedsDir, "directory with seed *.sql files")
	)
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if cfg.PGDSN == "" {
		log.Fatal("TASKHUB_PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(db, *migrationsDir, *seedsDir)

	switch command {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("migrations applied")
	case "seed":
		if err := mgr.Seed(ctx); err != nil {
			log.Fatalf("seed: %v", err)
		}
		log.Println("seeds applied")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q (want up, seed or status)", command)
	}
}
