package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Offers connects once and prints the account's open offers.
func (a *App) Offers(ctx context.Context) error {
	conn := a.newConn()
	if err := conn.ConnectWithRetry(ctx); err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	info, err := conn.Client().AccountInfo(ctx, a.Config.Ledger.Account)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "account %s  balance %s drops  sequence %d\n",
		info.Account, info.Balance.String(), info.Sequence)

	offers, err := conn.Client().AccountOffers(ctx, a.Config.Ledger.Account)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		fmt.Fprintln(os.Stdout, "no open offers")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Seq\tTakerGets\tTakerPays")
	for _, offer := range offers {
		fmt.Fprintf(writer, "%d\t%s\t%s\n", offer.Sequence, offer.TakerGets, offer.TakerPays)
	}
	return writer.Flush()
}

// Valuate runs one aggregation cycle and prints the verdict.
func (a *App) Valuate(ctx context.Context) error {
	v, err := a.newAggregator().Aggregate(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Value\t%s\n", v.Value.String())
	fmt.Fprintf(writer, "Confidence\t%.3f\n", v.Confidence)
	fmt.Fprintf(writer, "Coefficient of variation\t%.4f\n", v.CoefficientOfVariation)
	fmt.Fprintf(writer, "Sources\t%d\n", v.SourceCount)
	fmt.Fprintf(writer, "Reliable\t%t\n", v.Reliable)
	if v.Degraded {
		fmt.Fprintln(writer, "Mode\tdegraded (synthetic fallback)")
	}
	if v.FromCache {
		fmt.Fprintf(writer, "Mode\tcached (age %s)\n", v.CacheAge)
	}
	return writer.Flush()
}
