// Command migrate applies pending schema migrations and exits. Every other
// binary (the server, the other tools) also migrates on startup through
// repository.New, so this exists for deploy pipelines that want migration
// as its own step, separate from booting the API.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"srg/internal/config"
	"srg/internal/repository"
)

func main() {
	var status bool
	flag.BoolVar(&status, "status", false, "print applied migrations instead of running pending ones")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	if status {
		printStatus(ctx, cfg.DatabaseURL)
		return
	}

	store, err := repository.New(ctx, cfg)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	defer store.Close()

	log.Println("[migrate] schema is up to date")
}

func printStatus(ctx context.Context, dbURL string) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		log.Fatalf("failed to read schema_migrations (has migrate run at least once?): %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var version int
		var name string
		var appliedAt any
		if err := rows.Scan(&version, &name, &appliedAt); err != nil {
			log.Fatalf("failed to scan migration row: %v", err)
		}
		log.Printf("  %03d  %-40s  %v", version, name, appliedAt)
		count++
	}
	log.Printf("[migrate] %d migration(s) applied", count)
}
