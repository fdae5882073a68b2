package ledger

import (
	"context"

	"github.com/rs/zerolog"
)

// SubmitFunc is one ledger-mutating operation executed by the queue.
type SubmitFunc func(ctx context.Context) error

type queuedOp struct {
	ctx  context.Context
	fn   SubmitFunc
	done chan error
}

// SubmitQueue serialises all transaction submissions for one account.
// Ledger sequencing requires strict per-account ordering, so the offer
// reconciler and the oracle's valuation anchoring both funnel through
// here; queued operations execute strictly in arrival order.
type SubmitQueue struct {
	ops    chan queuedOp
	logger zerolog.Logger
}

// NewSubmitQueue starts the queue worker. Close the returned queue by
// cancelling the context passed to Run.
func NewSubmitQueue(depth int, logger zerolog.Logger) *SubmitQueue {
	if depth <= 0 {
		depth = 16
	}
	return &SubmitQueue{
		ops:    make(chan queuedOp, depth),
		logger: logger.With().Str("component", "submit_queue").Logger(),
	}
}

// Run consumes queued operations until ctx is cancelled. In-flight
// operations are not aborted; cancellation takes effect between ops.
func (q *SubmitQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx.Err())
			return
		case op := <-q.ops:
			op.done <- op.fn(op.ctx)
		}
	}
}

// Do enqueues fn and blocks until it has executed (or ctx is cancelled
// while waiting for a slot).
func (q *SubmitQueue) Do(ctx context.Context, fn SubmitFunc) error {
	op := queuedOp{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case q.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *SubmitQueue) drain(err error) {
	for {
		select {
		case op := <-q.ops:
			op.done <- err
		default:
			return
		}
	}
}
