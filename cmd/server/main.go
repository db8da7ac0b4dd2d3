package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nimbus-portal/internal/config"
	"nimbus-portal/internal/repository"
	"nimbus-portal/internal/server"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// init-db prepares the schema and exits.
	if flag.Arg(0) == "init-db" {
		logger.Info("Initialized the database.", zap.String("db_path", cfg.Database.Path))
		return
	}

	srv, err := server.NewServer(cfg, db, logger)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("GIN_MODE") == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
