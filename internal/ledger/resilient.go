package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Timings control the reconnection delays. Zero fields take defaults.
type Timings struct {
	// BackoffStep scales the initial-connect backoff: min(step*attempt, ceiling).
	BackoffStep    time.Duration
	BackoffCeiling time.Duration
	// ReconnectDelay is the fixed pause between disconnect and redial.
	ReconnectDelay time.Duration
}

func (t Timings) withDefaults() Timings {
	if t.BackoffStep <= 0 {
		t.BackoffStep = 5 * time.Second
	}
	if t.BackoffCeiling <= 0 {
		t.BackoffCeiling = 30 * time.Second
	}
	if t.ReconnectDelay <= 0 {
		t.ReconnectDelay = 5 * time.Second
	}
	return t
}

// ResilientConn owns connection lifecycle for a shared ledger client.
// No other component opens or closes the underlying transport.
type ResilientConn struct {
	client     Client
	maxRetries int
	timings    Timings
	logger     zerolog.Logger
}

// NewResilientConn wraps a ledger client with reconnection discipline.
func NewResilientConn(client Client, maxRetries int, logger zerolog.Logger) *ResilientConn {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &ResilientConn{
		client:     client,
		maxRetries: maxRetries,
		timings:    Timings{}.withDefaults(),
		logger:     logger.With().Str("component", "ledger_conn").Logger(),
	}
}

// WithTimings overrides the delay schedule.
func (r *ResilientConn) WithTimings(t Timings) *ResilientConn {
	r.timings = t.withDefaults()
	return r
}

// Client exposes the wrapped client for read/submit operations.
func (r *ResilientConn) Client() Client { return r.client }

// ConnectWithRetry performs the initial connection with a linearly
// growing, capped backoff between attempts. Exhausting the budget is a
// StartupError and fatal to the process.
func (r *ResilientConn) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err := r.client.Connect(ctx)
		if err == nil {
			r.logger.Info().Int("attempt", attempt).Msg("connected to ledger")
			return nil
		}
		lastErr = err

		delay := time.Duration(attempt) * r.timings.BackoffStep
		if delay > r.timings.BackoffCeiling {
			delay = r.timings.BackoffCeiling
		}
		r.logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("ledger connection attempt failed")

		if attempt < r.maxRetries {
			if err := sleepCtx(ctx, delay); err != nil {
				return &StartupError{Attempts: attempt, Err: err}
			}
		}
	}
	return &StartupError{Attempts: r.maxRetries, Err: lastErr}
}

// EnsureConnected verifies the transport is live, performing a
// disconnect-then-reconnect with a short fixed delay when it is not.
// Failure is a ConnectionError; the caller treats it as a failed cycle.
func (r *ResilientConn) EnsureConnected(ctx context.Context) error {
	if r.client.IsConnected() {
		return nil
	}
	return r.Reconnect(ctx)
}

// Reconnect tears the connection down and dials again after a fixed delay.
func (r *ResilientConn) Reconnect(ctx context.Context) error {
	r.logger.Warn().Msg("ledger connection lost, reconnecting")

	if err := r.client.Disconnect(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("disconnect before reconnect failed")
	}

	if err := sleepCtx(ctx, r.timings.ReconnectDelay); err != nil {
		return &ConnectionError{Op: "reconnect", Err: err}
	}

	if err := r.client.Connect(ctx); err != nil {
		return &ConnectionError{Op: "reconnect", Err: err}
	}

	r.logger.Info().Msg("ledger connection restored")
	return nil
}

// Close shuts the transport down at process exit.
func (r *ResilientConn) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
