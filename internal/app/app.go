package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xrpl-usdt-bot/internal/compliance"
	"xrpl-usdt-bot/internal/config"
	"xrpl-usdt-bot/internal/ledger"
	"xrpl-usdt-bot/internal/oracle"
	"xrpl-usdt-bot/internal/reconciler"
	"xrpl-usdt-bot/internal/service"
	"xrpl-usdt-bot/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newConn() *ledger.ResilientConn {
	client := ledger.NewWSClient(ledger.WSOptions{
		URL:     a.Config.Ledger.URL,
		Secret:  a.Config.Ledger.Secret,
		Timeout: a.Config.Ledger.RequestTimeout,
	}, a.Logger)
	return ledger.NewResilientConn(client, a.Config.Ledger.MaxRetries, a.Logger)
}

func (a *App) newSources() []oracle.Source {
	sources := make([]oracle.Source, 0, len(a.Config.Oracle.Sources))
	for _, sc := range a.Config.Oracle.Sources {
		if sc.URL == "" {
			sources = append(sources, oracle.NewStaticSource(
				sc.Name, decimal.NewFromFloat(sc.StaticValue), sc.Confidence, sc.Weight))
			continue
		}
		sources = append(sources, oracle.NewHTTPSource(oracle.HTTPSourceOptions{
			Name:           sc.Name,
			URL:            sc.URL,
			ValuePath:      sc.ValuePath,
			ConfidencePath: sc.ConfidencePath,
			Confidence:     sc.Confidence,
			Weight:         sc.Weight,
			Timeout:        sc.Timeout,
			UserAgent:      a.Config.App.Name,
		}, a.Logger))
	}
	return sources
}

func (a *App) newAggregator() *oracle.Aggregator {
	return oracle.NewAggregator(a.newSources(), oracle.AggregatorOptions{
		MinConfidence: a.Config.Oracle.MinConfidence,
		SourceTimeout: a.Config.Oracle.SourceTimeout,
		FallbackValue: decimal.NewFromFloat(a.Config.Oracle.FallbackValue),
	}, a.Logger)
}

func (a *App) desiredOffer() reconciler.DesiredOffer {
	cfg := a.Config.Offer
	return reconciler.DesiredOffer{
		SellCurrency:    cfg.SellCurrency,
		SellIssuer:      cfg.SellIssuer,
		SellAmount:      decimal.NewFromFloat(cfg.SellAmount),
		BuyCurrency:     cfg.BuyCurrency,
		BuyIssuer:       cfg.BuyIssuer,
		BuyAmount:       decimal.NewFromFloat(cfg.BuyAmount),
		TotalSupply:     decimal.NewFromFloat(cfg.TotalSupply),
		AdminFeeEnabled: cfg.AdminFeeEnabled,
		AdminFeePct:     decimal.NewFromFloat(cfg.AdminFeePct),
	}
}

func (a *App) newSink() compliance.Sink {
	if !a.Config.Compliance.Enabled {
		return nil
	}
	cfg := a.Config.Compliance

	var sinks []compliance.Sink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, compliance.NewWebhookSink(cfg.WebhookURL, cfg.Timeout, a.Logger))
	}
	if cfg.Telegram.Enabled {
		tg := cfg.Telegram
		sinks = append(sinks, compliance.NewTelegramSink(tg.BotToken, tg.ChatID, tg.APIBase, cfg.Timeout, a.Logger))
	}

	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return compliance.NewMultiSink(sinks...)
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

// Run executes the long-running reconciliation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	conn := a.newConn()
	queue := ledger.NewSubmitQueue(16, a.Logger)
	state := reconciler.NewState()

	agg := a.newAggregator()
	anchor := a.newAnchor(conn.Client(), queue, store)
	osched := oracle.NewScheduler(agg, anchor, oracle.SchedulerOptions{
		Interval:    a.Config.Oracle.UpdateInterval,
		EventBuffer: a.Config.Oracle.EventBuffer,
	}, a.Logger)

	var observer reconciler.OfferObserver
	if store != nil {
		observer = &offerEventRecorder{store: store, logger: a.Logger}
	}

	rec := reconciler.New(conn, queue, a.desiredOffer(), osched.Events(), state, observer, reconciler.Options{
		Account:       a.Config.Ledger.Account,
		PriceTracking: a.Config.Offer.PriceTracking,
	}, a.Logger)

	svc := service.New(service.Deps{
		Conn:       conn,
		Queue:      queue,
		Reconciler: rec,
		Oracle:     osched,
		State:      state,
		Sink:       a.newSink(),
		Store:      store,
	}, service.Options{
		Account:            a.Config.Ledger.Account,
		CheckInterval:      a.Config.Offer.CheckInterval,
		MaxRetries:         a.Config.Ledger.MaxRetries,
		ComplianceInterval: a.Config.Compliance.Interval,
	}, a.Logger)

	a.Logger.Info().Msg("starting offer reconciliation service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("offer reconciliation service stopped")
	return nil
}

// newAnchor wires ledger anchoring plus optional database recording of
// accepted valuations.
func (a *App) newAnchor(client ledger.Client, queue *ledger.SubmitQueue, store *storage.Store) oracle.Anchor {
	ledgerAnchor := oracle.NewLedgerAnchor(client, queue, a.Config.Ledger.Account, a.Logger)
	if store == nil {
		return ledgerAnchor
	}
	return multiAnchor{ledgerAnchor, &valuationRecorder{store: store, logger: a.Logger}}
}

type multiAnchor []oracle.Anchor

func (m multiAnchor) AnchorValuation(ctx context.Context, v oracle.Valuation) error {
	var firstErr error
	for _, anchor := range m {
		if err := anchor.AnchorValuation(ctx, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type valuationRecorder struct {
	store  *storage.Store
	logger zerolog.Logger
}

func (r *valuationRecorder) AnchorValuation(ctx context.Context, v oracle.Valuation) error {
	_, err := r.store.InsertValuation(ctx, storage.ValuationRecord{
		Value:       v.Value,
		Confidence:  v.Confidence,
		CV:          v.CoefficientOfVariation,
		SourceCount: v.SourceCount,
		Reliable:    v.Reliable,
		Degraded:    v.Degraded,
		FromCache:   v.FromCache,
		ProducedAt:  v.Timestamp,
	})
	return err
}

type offerEventRecorder struct {
	store  *storage.Store
	logger zerolog.Logger
}

func (r *offerEventRecorder) ObserveOffer(ctx context.Context, ev reconciler.OfferEvent) {
	record := storage.OfferEventRecord{
		Action:       ev.Action,
		TxHash:       ev.Hash,
		SellCurrency: ev.Desired.SellCurrency,
		BuyCurrency:  ev.Desired.BuyCurrency,
		SellAmount:   ev.Desired.SellAmount,
		BuyAmount:    ev.Desired.BuyAmount,
	}
	if ev.Sequence != 0 {
		seq := int64(ev.Sequence)
		record.OfferSequence = &seq
	}
	if _, err := r.store.InsertOfferEvent(ctx, record); err != nil {
		r.logger.Warn().Err(err).Str("action", ev.Action).Msg("failed to persist offer event")
	}
}
