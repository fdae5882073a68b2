package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xrpl-usdt-bot/internal/compliance"
	"xrpl-usdt-bot/internal/ledger"
	"xrpl-usdt-bot/internal/oracle"
	"xrpl-usdt-bot/internal/reconciler"
	"xrpl-usdt-bot/internal/scheduler"
	"xrpl-usdt-bot/internal/storage"
)

// Options tune the reconciliation loop.
type Options struct {
	Account            string
	CheckInterval      time.Duration
	MaxRetries         int
	ComplianceInterval time.Duration
}

// Deps are the collaborators the loop drives. Sink and Store may be nil.
type Deps struct {
	Conn       *ledger.ResilientConn
	Queue      *ledger.SubmitQueue
	Reconciler *reconciler.Reconciler
	Oracle     *oracle.Scheduler
	State      *reconciler.State
	Sink       compliance.Sink
	Store      *storage.Store
}

// Service is the top-level control loop: one reconcile tick per interval,
// the oracle scheduler alongside, all ledger submissions serialised
// through the shared per-account queue, graceful shutdown with a final
// statistics report.
type Service struct {
	deps     Deps
	opts     Options
	loop     *scheduler.Loop
	reporter *compliance.Reporter
	logger   zerolog.Logger
}

// New constructs the reconciliation service.
func New(deps Deps, opts Options, logger zerolog.Logger) *Service {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}

	s := &Service{
		deps:   deps,
		opts:   opts,
		loop:   scheduler.New(scheduler.Options{Interval: opts.CheckInterval}, logger),
		logger: logger.With().Str("component", "service").Logger(),
	}

	if deps.Sink != nil {
		s.reporter = compliance.NewReporter(deps.Sink, opts.ComplianceInterval, s.Snapshot, logger)
	}

	return s
}

// Run connects, drives the loop until ctx is cancelled, then shuts down
// gracefully. Only a startup failure is returned as a fatal error.
func (s *Service) Run(ctx context.Context) error {
	if err := s.deps.Conn.ConnectWithRetry(ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.deps.Queue.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.deps.Oracle.Run(ctx)
	}()

	if s.reporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.reporter.Run(ctx)
		}()
	}

	s.logger.Info().
		Dur("check_interval", s.opts.CheckInterval).
		Int("max_retries", s.opts.MaxRetries).
		Msg("reconciliation loop started")

	_ = s.loop.Run(ctx, s.cycle)

	s.deps.State.Stop()
	wg.Wait()
	s.shutdown()
	return nil
}

// cycle runs one reconciliation pass and applies the failure policy:
// consecutive errors reaching the retry budget force one reconnect and
// reset the counter regardless of the reconnect outcome.
func (s *Service) cycle(ctx context.Context) error {
	err := s.deps.Reconciler.Reconcile(ctx)
	if err == nil {
		s.deps.State.RecordSuccess()
		return nil
	}

	count := s.deps.State.RecordFailure()
	s.logger.Warn().Err(err).Int("consecutive_errors", count).Msg("reconcile cycle failed")

	if count >= s.opts.MaxRetries {
		s.logger.Warn().Int("threshold", s.opts.MaxRetries).Msg("error threshold reached; forcing reconnect")
		if rerr := s.deps.Conn.Reconnect(ctx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("forced reconnect failed")
		}
		// Counter resets even when the reconnect failed; the next cycle
		// fails the same way and counts up again.
		s.deps.State.ResetErrors()
	}

	return err
}

// shutdown drains final reporting and closes the transport. Uses a fresh
// context because the run context is already cancelled.
func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap := s.deps.State.Snapshot()

	if s.reporter != nil {
		s.reporter.PushFinal(ctx)
	}

	if s.deps.Store != nil {
		summary := storage.RunSummary{
			StartedAt:       time.Now().Add(-snap.Uptime),
			EndedAt:         time.Now(),
			OffersCreated:   snap.TotalOffersCreated,
			OffersCancelled: snap.TotalCancelled,
			LastOfferHash:   snap.LastOfferHash,
			ErrorCount:      snap.TotalFailures,
		}
		if _, err := s.deps.Store.InsertRunSummary(ctx, summary); err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist run summary")
		}
	}

	if err := s.deps.Conn.Close(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("disconnect failed during shutdown")
	}

	s.logger.Info().
		Int("offers_created", snap.TotalOffersCreated).
		Int("offers_cancelled", snap.TotalCancelled).
		Str("last_offer_hash", snap.LastOfferHash).
		Int("consecutive_errors", snap.ConsecutiveErrors).
		Dur("uptime", snap.Uptime).
		Msg("reconciliation loop stopped")
}

// Snapshot assembles the current compliance status snapshot.
func (s *Service) Snapshot() compliance.Snapshot {
	state := s.deps.State.Snapshot()

	snap := compliance.Snapshot{
		Connected:         s.deps.Conn.Client().IsConnected(),
		OffersCreated:     state.TotalOffersCreated,
		OffersCancelled:   state.TotalCancelled,
		ConsecutiveErrors: state.ConsecutiveErrors,
		LastOfferHash:     state.LastOfferHash,
		Uptime:            state.Uptime.Round(time.Second).String(),
	}

	if snap.Connected && s.opts.Account != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if info, err := s.deps.Conn.Client().AccountInfo(ctx, s.opts.Account); err == nil {
			snap.AccountBalance = info.Balance.String()
			snap.AccountSequence = info.Sequence
		} else {
			s.logger.Warn().Err(err).Msg("account info lookup failed for snapshot")
		}
	}

	if v := s.deps.Oracle.Accepted(); v != nil {
		snap.ValuationValue = v.Value.String()
		snap.ValuationConfidence = v.Confidence
		snap.ValuationReliable = v.Reliable
		snap.ValuationAge = v.Age(time.Now()).Round(time.Second).String()
	}

	return snap
}
