package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// ReconcilerConfig holds configuration for the periodic reconciler
type ReconcilerConfig struct {
	// Interval is how often the balance is checked against the ledger
	Interval time.Duration
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Interval: 5 * time.Minute}
}

// Reconciler periodically verifies that the stored balance matches the
// ledger sum and logs loudly when they diverge
type Reconciler struct {
	service *LedgerService
	config  ReconcilerConfig
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReconciler creates a new reconciler
func NewReconciler(service *LedgerService, config ReconcilerConfig, logger *log.Logger) *Reconciler {
	if config.Interval <= 0 {
		config = DefaultReconcilerConfig()
	}
	return &Reconciler{
		service: service,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the reconciliation loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval.String())
	return nil
}

// Stop gracefully stops the reconciler and waits for completion
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)

	select {
	case <-r.doneCh:
		r.logger.InfoContext(ctx, "Reconciler stopped gracefully")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// IsRunning returns whether the reconciler is currently running
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// Check immediately on startup
	r.check(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

func (r *Reconciler) check(ctx context.Context) {
	_, err := r.service.Reconcile(ctx)
	if err == nil {
		return
	}

	if core.IsConsistencyGap(err) {
		r.logger.ErrorContext(ctx, "Balance diverged from ledger",
			log.FieldOperation, log.OpReconcile,
			log.FieldError, err.Error())
		return
	}
	r.logger.WarnContext(ctx, "Reconciliation check failed",
		log.FieldOperation, log.OpReconcile,
		log.FieldError, err.Error())
}
