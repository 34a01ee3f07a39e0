package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/dataexchange/internal/buildinfo"
	"github.com/and161185/dataexchange/internal/config"
	"github.com/and161185/dataexchange/internal/server"
	"github.com/and161185/dataexchange/storage"
	"github.com/and161185/dataexchange/storage/inmemory"
	"github.com/and161185/dataexchange/storage/postgres"
)

func main() {
	buildinfo.PrintBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.NewServerConfig()
	defer func() { _ = cfg.Logger.Sync() }()

	var st storage.Storage
	if cfg.DatabaseDsn != "" {
		pg, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn)
		if err != nil {
			cfg.Logger.Fatalw("failed to open database", "error", err)
		}
		defer pg.Close()
		st = pg
	} else {
		st = inmemory.NewMemStorage(cfg.Logger)
	}

	cfg.Logger.Infow("server config",
		"addr", cfg.Addr,
		"storeInterval", cfg.StoreInterval,
		"fileStoragePath", cfg.FileStoragePath,
		"restore", cfg.Restore,
		"databaseDSNSet", cfg.DatabaseDsn != "",
		"serverSideXML", cfg.ServerSideXML,
		"rateLimit", cfg.RateLimit,
	)

	srv := server.NewServer(st, cfg)
	if err := srv.Run(ctx); err != nil {
		cfg.Logger.Fatalw("server failed", "error", err)
	}
}
