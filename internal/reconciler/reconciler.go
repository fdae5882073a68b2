package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"xrpl-usdt-bot/internal/ledger"
	"xrpl-usdt-bot/internal/oracle"
)

// OfferEvent describes one offer lifecycle action for observers
// (persistence, compliance snapshots).
type OfferEvent struct {
	Action   string // "created" or "cancelled"
	Hash     string
	Sequence uint32
	Desired  DesiredOffer
}

// OfferObserver receives offer lifecycle events. Best-effort.
type OfferObserver interface {
	ObserveOffer(ctx context.Context, ev OfferEvent)
}

// Options parameterise the reconciler.
type Options struct {
	Account       string
	PriceTracking bool
}

// Reconciler keeps the account's standing offer aligned with the desired
// offer. One Reconcile call is one cycle; cycles of the same reconciler
// never overlap (the driver ticks sequentially).
type Reconciler struct {
	conn     *ledger.ResilientConn
	queue    *ledger.SubmitQueue
	events   <-chan oracle.PriceUpdateEvent
	state    *State
	observer OfferObserver
	opts     Options
	logger   zerolog.Logger

	mu      sync.Mutex
	desired DesiredOffer

	// pendingReprice marks that a price update has been applied to the
	// desired offer but the on-book replacement sweep has not completed
	// yet. It survives failed cycles so a transient connection loss
	// between draining the event and replacing the offer cannot strand
	// the old offer on the book.
	pendingReprice bool
}

// New constructs an offer reconciler. events and observer may be nil.
func New(conn *ledger.ResilientConn, queue *ledger.SubmitQueue, desired DesiredOffer, events <-chan oracle.PriceUpdateEvent, state *State, observer OfferObserver, opts Options, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		conn:     conn,
		queue:    queue,
		events:   events,
		state:    state,
		observer: observer,
		opts:     opts,
		desired:  desired,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Desired returns the current target offer.
func (r *Reconciler) Desired() DesiredOffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.desired
}

// Reconcile runs one cycle: drain pending price updates, verify the
// connection, then either replace the offer (after a price update) or
// re-create it if the standing offer is missing.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.drainPriceEvents()

	if err := r.conn.EnsureConnected(ctx); err != nil {
		return err
	}

	if r.repricePending() {
		if err := r.replaceOffers(ctx); err != nil {
			return err
		}
		r.mu.Lock()
		r.pendingReprice = false
		r.mu.Unlock()
		return nil
	}

	offers, err := r.listOffers(ctx)
	if err != nil {
		return err
	}

	desired := r.Desired()
	for _, offer := range offers {
		if desired.Matches(offer) {
			// First match is canonical; extra offers on the pair are
			// left alone until the next price update sweeps them.
			r.logger.Debug().Uint32("seq", offer.Sequence).Msg("standing offer intact")
			return nil
		}
	}

	r.logger.Info().Int("open_offers", len(offers)).Msg("standing offer missing; creating")
	return r.createOffer(ctx, desired)
}

// drainPriceEvents consumes every queued price update, applies the
// newest one, and marks a replacement sweep pending. The pending flag is
// cleared by Reconcile only once the sweep has completed.
func (r *Reconciler) drainPriceEvents() {
	if r.events == nil || !r.opts.PriceTracking {
		return
	}

	var latest *oracle.PriceUpdateEvent
	for {
		select {
		case ev := <-r.events:
			latest = &ev
		default:
			if latest == nil {
				return
			}
			r.mu.Lock()
			r.desired = r.desired.Repriced(latest.New)
			r.pendingReprice = true
			desired := r.desired
			r.mu.Unlock()

			r.logger.Info().
				Float64("change_pct", latest.PriceChangePct).
				Str("buy_amount", desired.BuyAmount.String()).
				Msg("desired offer repriced")
			return
		}
	}
}

func (r *Reconciler) repricePending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingReprice
}

// listOffers returns the account's open offers, treating an unfunded
// account as having none.
func (r *Reconciler) listOffers(ctx context.Context) ([]ledger.Offer, error) {
	offers, err := r.conn.Client().AccountOffers(ctx, r.opts.Account)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			r.logger.Warn().Str("account", r.opts.Account).Msg("account not found on ledger; treating as no offers")
			return nil, nil
		}
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return offers, nil
}

// replaceOffers cancels every open offer on the target pair, each
// cancellation independent and best-effort, then creates the repriced
// offer.
func (r *Reconciler) replaceOffers(ctx context.Context) error {
	offers, err := r.listOffers(ctx)
	if err != nil {
		return err
	}

	desired := r.Desired()
	for _, offer := range offers {
		if !desired.OnTargetPair(offer) {
			continue
		}
		if err := r.cancelOffer(ctx, desired, offer.Sequence); err != nil {
			r.logger.Warn().Err(err).Uint32("seq", offer.Sequence).Msg("offer cancellation failed; continuing")
		}
	}

	return r.createOffer(ctx, desired)
}

func (r *Reconciler) createOffer(ctx context.Context, desired DesiredOffer) error {
	tx := ledger.NewOfferCreate(r.opts.Account, desired.TakerGets(), desired.TakerPays())

	return r.queue.Do(ctx, func(ctx context.Context) error {
		blob, err := r.conn.Client().Sign(ctx, tx)
		if err != nil {
			return fmt.Errorf("sign offer create: %w", err)
		}
		res, err := r.conn.Client().SubmitAndWait(ctx, blob)
		if err != nil {
			return fmt.Errorf("submit offer create: %w", err)
		}
		if !res.Success() {
			return &ledger.SubmissionError{Hash: res.Hash, ResultCode: res.ResultCode}
		}

		r.state.RecordOfferCreated(res.Hash)
		r.notify(ctx, OfferEvent{Action: "created", Hash: res.Hash, Desired: desired})
		r.logger.Info().
			Str("hash", res.Hash).
			Str("taker_gets", tx.TakerGets.String()).
			Str("taker_pays", tx.TakerPays.String()).
			Msg("offer created")
		return nil
	})
}

func (r *Reconciler) cancelOffer(ctx context.Context, desired DesiredOffer, seq uint32) error {
	tx := ledger.NewOfferCancel(r.opts.Account, seq)

	return r.queue.Do(ctx, func(ctx context.Context) error {
		blob, err := r.conn.Client().Sign(ctx, tx)
		if err != nil {
			return fmt.Errorf("sign offer cancel: %w", err)
		}
		res, err := r.conn.Client().SubmitAndWait(ctx, blob)
		if err != nil {
			return fmt.Errorf("submit offer cancel: %w", err)
		}
		if !res.Success() {
			return &ledger.SubmissionError{Hash: res.Hash, ResultCode: res.ResultCode}
		}

		r.state.RecordOfferCancelled()
		r.notify(ctx, OfferEvent{Action: "cancelled", Hash: res.Hash, Sequence: seq, Desired: desired})
		r.logger.Info().Uint32("seq", seq).Str("hash", res.Hash).Msg("offer cancelled")
		return nil
	})
}

func (r *Reconciler) notify(ctx context.Context, ev OfferEvent) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveOffer(ctx, ev)
}
