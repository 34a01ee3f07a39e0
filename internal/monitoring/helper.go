package monitoring

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/errs"
)

// Helper runs the supplier on a fixed delay until stopped. It is either
// idle or running; the zero value is not usable, use Builder.
type Helper struct {
	supplier Supplier
	sink     Sink
	path     []string
	charset  string
	logger   *zap.SugaredLogger
	clock    func() int64
	script   string
	verbose  atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Path returns the parent path documents are routed under.
func (h *Helper) Path() []string { return slices.Clone(h.path) }

// SetVerbose toggles logging of tick failures.
func (h *Helper) SetVerbose(v bool) { h.verbose.Store(v) }

// Running reports whether monitoring is in progress.
func (h *Helper) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// StartMonitoring starts executions spaced by period, measured from the end
// of one execution to the start of the next. The first execution happens
// after one period. It returns false if monitoring is already running.
func (h *Helper) StartMonitoring(period time.Duration) bool {
	if period <= 0 {
		period = DefaultPeriod
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.running, h.cancel, h.done = true, cancel, done

	go h.loop(ctx, period, done)
	return true
}

// StopMonitoring cancels further executions and waits for the in-flight one
// for at most timeout. A zero timeout does not wait; a negative one waits
// DefaultStopTimeout. It returns false if monitoring was not running,
// otherwise true once idle, even if the wait timed out.
func (h *Helper) StopMonitoring(timeout time.Duration) bool {
	if timeout < 0 {
		timeout = DefaultStopTimeout
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return false
	}

	h.cancel()
	if !waitDone(h.done, timeout) && h.verbose.Load() {
		h.logger.Warnw("monitoring stop timed out, in-flight execution abandoned",
			"script", h.script, "timeout", timeout)
	}

	h.running, h.cancel, h.done = false, nil, nil
	return true
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	if timeout == 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func (h *Helper) loop(ctx context.Context, period time.Duration, done chan<- struct{}) {
	defer close(done)

	t := time.NewTimer(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		// an execution started before Stop runs to completion
		h.tick(context.WithoutCancel(ctx))

		if ctx.Err() != nil {
			return
		}
		t.Reset(period)
	}
}

// tick runs one execution. Failures never escape it.
func (h *Helper) tick(ctx context.Context) {
	start := time.Now()
	err := h.execute(ctx)
	tickDuration.WithLabelValues(h.script).Observe(time.Since(start).Seconds())

	if err == nil {
		ticksTotal.WithLabelValues(h.script, "success").Inc()
		return
	}
	ticksTotal.WithLabelValues(h.script, "error").Inc()
	if h.verbose.Load() {
		h.logger.Errorw("Issue while monitoring for the DataExchange API. "+
			"Please verify the configuration and data coming from the monitoring supplier.",
			"script", h.script, "error", err)
	}
}

func (h *Helper) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.TransientSamplingFailure, fmt.Sprintf("panic: %v", r))
		}
	}()

	timestamp := h.clock()
	xmls, err := h.supplier.Get(ctx)
	if err != nil {
		return errs.Wrap(errs.TransientSamplingFailure, "supplier", err)
	}
	for _, xml := range xmls {
		if err := h.sink.AddXMLEntries(ctx, xml, h.Path(), timestamp, h.charset); err != nil {
			return errs.Wrap(errs.TransientSamplingFailure, "sink", err)
		}
		documentsTotal.WithLabelValues(h.script).Inc()
	}
	return nil
}
