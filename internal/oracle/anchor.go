package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"xrpl-usdt-bot/internal/ledger"
)

// LedgerAnchor writes accepted valuations to the bot account as an
// AccountSet memo. Submissions go through the shared per-account queue so
// they never interleave with offer transactions.
type LedgerAnchor struct {
	client  ledger.Client
	queue   *ledger.SubmitQueue
	account string
	logger  zerolog.Logger
}

// NewLedgerAnchor constructs a ledger-backed valuation anchor.
func NewLedgerAnchor(client ledger.Client, queue *ledger.SubmitQueue, account string, logger zerolog.Logger) *LedgerAnchor {
	return &LedgerAnchor{
		client:  client,
		queue:   queue,
		account: account,
		logger:  logger.With().Str("component", "anchor").Logger(),
	}
}

type anchorPayload struct {
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence"`
	CV          float64 `json:"cv"`
	SourceCount int     `json:"sources"`
	Timestamp   string  `json:"ts"`
}

// AnchorValuation signs and submits the memo transaction.
func (a *LedgerAnchor) AnchorValuation(ctx context.Context, v Valuation) error {
	payload, err := json.Marshal(anchorPayload{
		Value:       v.Value.String(),
		Confidence:  v.Confidence,
		CV:          v.CoefficientOfVariation,
		SourceCount: v.SourceCount,
		Timestamp:   v.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("oracle: marshal anchor payload: %w", err)
	}

	memo := ledger.Memo{
		MemoType: hex.EncodeToString([]byte("valuation")),
		MemoData: hex.EncodeToString(payload),
	}
	tx := ledger.NewAccountSet(a.account, memo)

	return a.queue.Do(ctx, func(ctx context.Context) error {
		blob, err := a.client.Sign(ctx, tx)
		if err != nil {
			return err
		}
		res, err := a.client.SubmitAndWait(ctx, blob)
		if err != nil {
			return err
		}
		if !res.Success() {
			return &ledger.SubmissionError{Hash: res.Hash, ResultCode: res.ResultCode}
		}
		a.logger.Info().Str("hash", res.Hash).Msg("valuation anchored on ledger")
		return nil
	})
}

var _ Anchor = (*LedgerAnchor)(nil)
