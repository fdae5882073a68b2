package ledger

import (
	"context"
)

// Client is the transport boundary to the XRP Ledger. The bot only issues
// semantically well-formed requests through it; consensus, wallet
// derivation, and signature schemes stay on the other side.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// AccountOffers lists the account's open DEX orders. Returns
	// ErrAccountNotFound (wrapped) when the account is not yet funded.
	AccountOffers(ctx context.Context, account string) ([]Offer, error)

	// AccountInfo returns balance and next sequence for the account.
	AccountInfo(ctx context.Context, account string) (AccountInfo, error)

	// Sign prepares and signs a transaction, returning the encoded blob.
	Sign(ctx context.Context, tx Transaction) (string, error)

	// SubmitAndWait submits a signed blob and waits for settlement.
	// A non-nil TxResult with a non-success code is returned without error;
	// the caller decides how to treat it.
	SubmitAndWait(ctx context.Context, blob string) (TxResult, error)
}
