package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/dataexchange/cmd/agent/collector"
	"github.com/and161185/dataexchange/internal/buildinfo"
	"github.com/and161185/dataexchange/internal/client"
	"github.com/and161185/dataexchange/internal/config"
	"github.com/and161185/dataexchange/internal/monitoring"
	"github.com/and161185/dataexchange/model"
)

// MonitorsSegment groups the runtime documents under the script name.
const MonitorsSegment = "Monitors"

func main() {
	buildinfo.PrintBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.NewClientConfig()
	defer func() { _ = cfg.Logger.Sync() }()

	if err := run(ctx, cfg, collector.NewRuntimeSupplier()); err != nil {
		cfg.Logger.Fatalw("agent failed", "error", err)
	}
}

func lifecycleEntry(script, code string, err error) (model.Entry, error) {
	b, berr := model.NewEntryBuilderNow([]string{script, "Agent", "Lifecycle"})
	if berr != nil {
		return model.Entry{}, berr
	}
	return b.SetStatus(model.StatusFromError(code, err)).Build(), nil
}

// run opens a session, reports how long that took, then monitors the runtime
// until ctx is done.
func run(ctx context.Context, cfg *config.ClientConfig, supplier monitoring.Supplier) error {
	logger := cfg.Logger

	startup, err := model.StartScriptTimer(cfg.ScriptName, "Agent startup")
	if err != nil {
		return err
	}

	sctx := cfg.Context
	if sctx.Script == "" {
		sctx.Script = cfg.ScriptName
	}
	clnt, err := client.NewClient(ctx, cfg, sctx, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	started, err := lifecycleEntry(cfg.ScriptName, "STARTED", nil)
	if err != nil {
		return err
	}
	if err := clnt.AddEntries(ctx, []model.Entry{startup.Stop(), started}); err != nil {
		return fmt.Errorf("send startup entries: %w", err)
	}

	helper, err := monitoring.NewBuilder(supplier, clnt).
		ScriptName(cfg.ScriptName).
		ParentPath(MonitorsSegment).
		Logger(logger).
		Verbose(cfg.Verbose).
		Build()
	if err != nil {
		return err
	}

	period := time.Duration(cfg.MonitorInterval) * time.Second
	helper.StartMonitoring(period)
	logger.Infow("monitoring started", "path", helper.Path(), "period", period)

	<-ctx.Done()

	helper.StopMonitoring(time.Duration(cfg.StopTimeout) * time.Second)
	logger.Info("monitoring stopped")

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(cfg.ClientTimeout)*time.Second)
	defer cancel()
	stopped, err := lifecycleEntry(cfg.ScriptName, "STOPPED", nil)
	if err != nil {
		return err
	}
	if err := clnt.AddEntry(sendCtx, stopped); err != nil {
		logger.Warnw("failed to send stop entry", "error", err)
	}
	return nil
}
