// Command migrate runs database migrations outside the server process,
// mainly for CI and one-off operational work. The server applies pending
// migrations on startup by itself.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/prospectlab/prospector/internal/migrate"
)

func main() {
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dbHost := getEnv("POSTGRES_HOST", "localhost")
		dbPort := getEnv("POSTGRES_PORT", "5432")
		dbUser := getEnv("POSTGRES_USER", "prospector")
		dbPass := getEnv("POSTGRES_PASSWORD", "prospector")
		dbName := getEnv("POSTGRES_DB", "prospector")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPass, dbHost, dbPort, dbName)
	}

	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Printf("Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	migrator := migrate.NewMigrator(db, log)
	ctx := context.Background()

	switch command {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	case "version":
		var version int64
		version, err = migrator.Version(ctx)
		if err == nil {
			fmt.Printf("database version: %d\n", version)
		}
	default:
		fmt.Println("Usage: migrate [up|down|status|version]")
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration command failed", slog.String("command", command), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
