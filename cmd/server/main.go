// Package main provides the entry point for the Prospector API server
//
// @title Prospector API
// @version 0.4.0
// @description Multi-tenant contact discovery and prospect import service
// @host localhost:5300
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description OAuth 2.0 access token (format: "Bearer <token>")
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/domain/extractor"
	"github.com/prospectlab/prospector/domain/flow"
	"github.com/prospectlab/prospector/domain/health"
	"github.com/prospectlab/prospector/domain/importer"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/domain/router"
	"github.com/prospectlab/prospector/domain/scheduler"
	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/database"
	"github.com/prospectlab/prospector/internal/migrate"
	"github.com/prospectlab/prospector/internal/redis"
	"github.com/prospectlab/prospector/internal/server"
	"github.com/prospectlab/prospector/pkg/auth"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/eventbus"
	"github.com/prospectlab/prospector/pkg/htmlcache"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local") // Overload ensures local values take precedence

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		redis.Module,
		migrate.Module,
		server.Module,

		// Auth module
		auth.Module,

		// Shared services
		ttlstore.Module,
		eventbus.Module,
		htmlcache.Module,
		circuit.Module,
		costtracker.Module,

		// Domain modules
		health.Module,
		normalize.Module,
		scout.Module,
		extractor.Module,
		router.Module,
		mining.Module,
		aggregate.Module,
		flow.Module,
		importer.Module,
		scheduler.Module,
	).Run()
}
