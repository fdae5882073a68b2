package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Limit int
}

// History prints recent accepted valuations and offer events.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	valuations, err := store.ListRecentValuations(ctx, opts.Limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "== Valuations ==")
	if len(valuations) == 0 {
		fmt.Fprintln(writer, "none")
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tValue\tConfidence\tCV\tSources\tReliable\tDegraded\tCached")
		for _, v := range valuations {
			fmt.Fprintf(writer, "%s\t%s\t%.3f\t%.4f\t%d\t%t\t%t\t%t\n",
				v.ProducedAt.UTC().Format(time.RFC3339),
				v.Value.String(), v.Confidence, v.CV, v.SourceCount,
				v.Reliable, v.Degraded, v.FromCache)
		}
	}

	events, err := store.ListRecentOfferEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(writer, "== Offer events ==")
	if len(events) == 0 {
		fmt.Fprintln(writer, "none")
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tAction\tHash\tPair\tSell\tBuy")
		for _, e := range events {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s/%s\t%s\t%s\n",
				e.CreatedAt.UTC().Format(time.RFC3339),
				e.Action, e.TxHash,
				e.SellCurrency, e.BuyCurrency,
				e.SellAmount.String(), e.BuyAmount.String())
		}
	}

	return writer.Flush()
}
