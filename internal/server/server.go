// Package server implements the DataExchange collector: it opens sessions,
// accepts entries and raw XML documents and keeps them in a Storage.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/config"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/internal/server/middleware"
	"github.com/and161185/dataexchange/storage"
)

const shutdownTimeout = 5 * time.Second

// Snapshotter is implemented by storages that persist to a file.
type Snapshotter interface {
	SaveToFile(ctx context.Context, path string) error
	LoadFromFile(ctx context.Context, path string) error
}

type Server struct {
	Storage storage.Storage
	Config  *config.ServerConfig
}

func NewServer(storage storage.Storage, config *config.ServerConfig) *Server {
	return &Server{
		Storage: storage,
		Config:  config,
	}
}

func (srv *Server) logger() *zap.SugaredLogger {
	if srv.Config.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return srv.Config.Logger
}

// Router builds the chi router with every middleware and route.
func (srv *Server) Router() (http.Handler, error) {
	trusted, err := middleware.TrustedCIDR(srv.Config.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.LogMiddleware(srv.logger()))
	router.Use(trusted)
	router.Use(middleware.RateLimit(srv.Config.RateLimit))
	router.Use(middleware.VerifyHashMiddleware(srv.Config.Key))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware)

	router.Get("/"+rest.MetadataResource, srv.MetadataHandler)
	router.Post("/"+rest.SessionResource, srv.SessionHandler)
	router.Get("/"+rest.SessionResource+"/{id}/"+rest.EntriesResource, srv.SessionEntriesHandler)
	router.Post("/"+rest.EntryResource, srv.EntryHandler)
	router.Post("/"+rest.EntriesResource, srv.EntriesHandler)
	if srv.Config.ServerSideXML {
		router.Post("/"+rest.XMLEntriesResource, srv.XMLEntriesHandler)
	}
	router.Get("/ping", srv.PingHandler)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/", srv.ListSessionsHandler)

	return router, nil
}

// Run serves until ctx is done, then shuts down gracefully and writes a
// final snapshot when the storage supports it.
func (srv *Server) Run(ctx context.Context) error {
	router, err := srv.Router()
	if err != nil {
		return err
	}

	if err := srv.restore(ctx); err != nil {
		return err
	}

	snapCtx, cancelSnap := context.WithCancel(ctx)
	defer cancelSnap()
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		srv.snapshotLoop(snapCtx)
	}()

	httpSrv := &http.Server{
		Addr:              srv.Config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger().Infow("server started", "addr", srv.Config.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		cancelSnap()
		<-snapDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		srv.logger().Errorw("graceful shutdown failed", "error", err)
	}

	cancelSnap()
	<-snapDone
	srv.snapshot(shutdownCtx)

	srv.logger().Info("server stopped")
	return nil
}

func (srv *Server) snapshotter() (Snapshotter, bool) {
	if srv.Config.FileStoragePath == "" {
		return nil, false
	}
	s, ok := srv.Storage.(Snapshotter)
	return s, ok
}

func (srv *Server) restore(ctx context.Context) error {
	s, ok := srv.snapshotter()
	if !ok || !srv.Config.Restore {
		return nil
	}
	if err := s.LoadFromFile(ctx, srv.Config.FileStoragePath); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	return nil
}

func (srv *Server) snapshot(ctx context.Context) {
	s, ok := srv.snapshotter()
	if !ok {
		return
	}
	if err := s.SaveToFile(ctx, srv.Config.FileStoragePath); err != nil {
		srv.logger().Errorw("failed to save sessions", "path", srv.Config.FileStoragePath, "error", err)
	}
}

// snapshotLoop saves the storage every StoreInterval seconds. A zero interval
// means handlers save synchronously after each write.
func (srv *Server) snapshotLoop(ctx context.Context) {
	if _, ok := srv.snapshotter(); !ok || srv.Config.StoreInterval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(srv.Config.StoreInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.snapshot(ctx)
		}
	}
}

// afterWrite persists immediately when the server runs in synchronous mode.
func (srv *Server) afterWrite(ctx context.Context) {
	if srv.Config.StoreInterval == 0 {
		srv.snapshot(ctx)
	}
}
