package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"entity-admin/internal/admin"
	"entity-admin/internal/config"
	"entity-admin/internal/demo"
	"entity-admin/internal/engine"
	"entity-admin/internal/logger"
	"entity-admin/internal/metadata"
	"entity-admin/internal/storage"
	"entity-admin/internal/store"
)

func newServeCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server with the demo entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert demo records (always on for the memory driver)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, seed bool) error {
	log, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 1. Metadata
	resolver, err := newResolver(log)
	if err != nil {
		return err
	}
	entities, err := resolver.All()
	if err != nil {
		return fmt.Errorf("resolve entities: %w", err)
	}
	log.Info("entities resolved", zap.Strings("ids", resolver.IDs()))

	// 2. Data source
	var src engine.DataSource
	var inserter demo.Inserter
	if cfg.Database.IsSQL() {
		if cfg.Database.Driver == "sqlite" && cfg.Database.Path != "" {
			if err := os.MkdirAll(cfg.Database.Path, 0o755); err != nil {
				return fmt.Errorf("create database dir: %w", err)
			}
		}
		db, err := store.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("database connected", zap.String("driver", cfg.Database.Driver))

		if err := store.NewMigrator(db).MigrateAll(ctx, entities); err != nil {
			return err
		}
		log.Info("schema ready")
		sqlSrc := store.NewSQLSource(db, resolver)
		src, inserter = sqlSrc, sqlSrc
	} else {
		mem := store.NewMemorySource()
		src, inserter = mem, mem
		seed = true
	}
	if seed {
		if err := demo.Seed(ctx, resolver, inserter); err != nil {
			return err
		}
		log.Info("demo records inserted")
	}

	// 3. Service and HTTP surface
	opts := []engine.ServiceOption{engine.WithLogger(log)}
	if cfg.Storage.Driver == "local" {
		opts = append(opts, engine.WithFileStorage(storage.NewLocalStorage(cfg.Storage.LocalPath)))
	}
	svc := engine.NewService(resolver, src, engine.Config{
		DefaultPageSize: cfg.Admin.DefaultPageSize,
		MaxPageSize:     cfg.Admin.MaxPageSize,
		MaxFileSize:     cfg.Storage.MaxFileSize,
	}, opts...)
	app := admin.NewApp(admin.Options{Config: cfg, Service: svc, Logger: log})

	// 4. Listen until the context ends
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()
	log.Info("server started", zap.String("addr", addr), zap.String("prefix", cfg.Admin.PathPrefix))

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func newResolver(log *zap.Logger) (*metadata.Resolver, error) {
	b := metadata.NewBuilder()
	demo.Register(b)
	r, err := metadata.NewResolver(b, metadata.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	return r, nil
}
