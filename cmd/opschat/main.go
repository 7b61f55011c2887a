package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/opschat/opschat/pkg/agentcfg"
	"github.com/opschat/opschat/pkg/api"
	"github.com/opschat/opschat/pkg/audit"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/documents"
	"github.com/opschat/opschat/pkg/observability"
	"github.com/opschat/opschat/pkg/prompts"
	"github.com/opschat/opschat/pkg/provideraccess"
	"github.com/opschat/opschat/pkg/rbac"
	"github.com/opschat/opschat/pkg/threads"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := runSchemas(ctx, db); err != nil {
		log.Fatalf("Failed to run schema migrations: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisURL,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, permission cache disabled")
			redisClient.Close()
			redisClient = nil
		}
	}

	blobs, err := documents.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	metrics := observability.NewMetrics()
	server := api.NewServer(cfg, db, redisClient, blobs, logger, metrics)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register(func(context.Context) error { return redisClient.Close() })
	}

	go func() {
		logger.Infof("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.Wait(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// runSchemas creates every table this service owns. The users table
// goes first because most of the others reference it.
func runSchemas(ctx context.Context, db *sql.DB) error {
	schemas := []string{
		auth.Schema,
		provideraccess.Schema,
		agentcfg.Schema,
		audit.Schema,
		prompts.Schema,
		threads.Schema,
		documents.Schema,
	}
	for _, schema := range schemas {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return rbac.RunMigrations(ctx, db)
}
