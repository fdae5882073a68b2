package ledger

import (
	"github.com/shopspring/decimal"
)

// Offer is an open order reported by the ledger for an account.
type Offer struct {
	Sequence  uint32
	TakerGets Amount
	TakerPays Amount
	Flags     uint32
}

// AccountInfo is the subset of account_info the bot cares about.
type AccountInfo struct {
	Account  string
	Balance  decimal.Decimal // XRP drops
	Sequence uint32
}

// TxResult is the settlement outcome of a submitted transaction.
type TxResult struct {
	Hash       string
	ResultCode string
	Validated  bool
}

// Success reports whether the transaction settled with the success code.
func (r TxResult) Success() bool {
	return r.ResultCode == "tesSUCCESS"
}

// Transaction is any ledger transaction the bot can prepare and sign.
type Transaction interface {
	TxType() string
}

// OfferCreate places a standing order on the DEX.
type OfferCreate struct {
	TransactionType string `json:"TransactionType"`
	Account         string `json:"Account"`
	TakerGets       Amount `json:"TakerGets"`
	TakerPays       Amount `json:"TakerPays"`
	Fee             string `json:"Fee,omitempty"`
	Sequence        uint32 `json:"Sequence,omitempty"`
}

// NewOfferCreate builds an OfferCreate for the given account and amounts.
func NewOfferCreate(account string, takerGets, takerPays Amount) *OfferCreate {
	return &OfferCreate{
		TransactionType: "OfferCreate",
		Account:         account,
		TakerGets:       takerGets,
		TakerPays:       takerPays,
	}
}

// TxType implements Transaction.
func (t *OfferCreate) TxType() string { return t.TransactionType }

// OfferCancel removes an open order by its sequence number.
type OfferCancel struct {
	TransactionType string `json:"TransactionType"`
	Account         string `json:"Account"`
	OfferSequence   uint32 `json:"OfferSequence"`
	Fee             string `json:"Fee,omitempty"`
	Sequence        uint32 `json:"Sequence,omitempty"`
}

// NewOfferCancel builds an OfferCancel for the given offer sequence.
func NewOfferCancel(account string, offerSequence uint32) *OfferCancel {
	return &OfferCancel{
		TransactionType: "OfferCancel",
		Account:         account,
		OfferSequence:   offerSequence,
	}
}

// TxType implements Transaction.
func (t *OfferCancel) TxType() string { return t.TransactionType }

// Memo is an on-ledger transaction annotation. Fields are hex encoded.
type Memo struct {
	MemoType string `json:"MemoType,omitempty"`
	MemoData string `json:"MemoData,omitempty"`
}

type memoWrapper struct {
	Memo Memo `json:"Memo"`
}

// AccountSet carries account metadata updates, used here to anchor
// accepted valuations as memos.
type AccountSet struct {
	TransactionType string        `json:"TransactionType"`
	Account         string        `json:"Account"`
	Memos           []memoWrapper `json:"Memos,omitempty"`
	Fee             string        `json:"Fee,omitempty"`
	Sequence        uint32        `json:"Sequence,omitempty"`
}

// NewAccountSet builds an AccountSet carrying the given memos.
func NewAccountSet(account string, memos ...Memo) *AccountSet {
	tx := &AccountSet{
		TransactionType: "AccountSet",
		Account:         account,
	}
	for _, m := range memos {
		tx.Memos = append(tx.Memos, memoWrapper{Memo: m})
	}
	return tx
}

// TxType implements Transaction.
func (t *AccountSet) TxType() string { return t.TransactionType }
