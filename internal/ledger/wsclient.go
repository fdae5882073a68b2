package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 15 * time.Second
	requestTimeout   = 20 * time.Second

	// settlement polling after submit
	settlePollInterval = 2 * time.Second
	settleWait         = 20 * time.Second
)

// WSOptions parameterise the websocket ledger client.
type WSOptions struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// WSClient speaks the ledger's JSON-RPC-over-websocket API. Requests are
// correlated by id and executed one at a time; the submit queue above this
// layer already serialises transaction traffic per account.
type WSClient struct {
	opts   WSOptions
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient constructs a websocket ledger client.
func NewWSClient(opts WSOptions, logger zerolog.Logger) *WSClient {
	if opts.Timeout <= 0 {
		opts.Timeout = requestTimeout
	}
	return &WSClient{
		opts:   opts,
		logger: logger.With().Str("component", "ledger_ws").Logger(),
	}
}

// Connect dials the configured endpoint.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.opts.URL == "" {
		return errors.New("ledger: url not configured")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return &ConnectionError{Op: "connect", Err: err}
	}

	c.conn = conn
	c.logger.Info().Str("url", c.opts.URL).Msg("ledger connection established")
	return nil
}

// Disconnect closes the websocket if open.
func (c *WSClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return &ConnectionError{Op: "disconnect", Err: err}
	}
	return nil
}

// IsConnected reports whether a websocket is currently open.
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Type   string          `json:"type"`
	Error  string          `json:"error"`
	ErrMsg string          `json:"error_message"`
	Result json.RawMessage `json:"result"`
}

// call performs one request/response exchange. The connection mutex is
// held for the round trip so responses cannot interleave.
func (c *WSClient) call(ctx context.Context, req map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	id := uuid.New().String()
	req["id"] = id

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(req); err != nil {
		c.dropConn()
		return &ConnectionError{Op: fmt.Sprint(req["command"]), Err: err}
	}

	for {
		var resp rpcResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.dropConn()
			return &ConnectionError{Op: fmt.Sprint(req["command"]), Err: err}
		}
		if resp.Type != "response" || resp.ID != id {
			// Unsolicited stream message; not subscribed to any, skip.
			continue
		}
		if resp.Status != "success" {
			if resp.Error == "actNotFound" {
				return fmt.Errorf("%s: %w", req["command"], ErrAccountNotFound)
			}
			msg := resp.ErrMsg
			if msg == "" {
				msg = resp.Error
			}
			return fmt.Errorf("ledger: %s failed: %s", req["command"], msg)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("ledger: decode %s result: %w", req["command"], err)
			}
		}
		return nil
	}
}

// dropConn closes a broken connection so IsConnected turns false. Caller
// holds the mutex.
func (c *WSClient) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// AccountOffers lists the account's open orders.
func (c *WSClient) AccountOffers(ctx context.Context, account string) ([]Offer, error) {
	var result struct {
		Offers []struct {
			Seq       uint32 `json:"seq"`
			Flags     uint32 `json:"flags"`
			TakerGets Amount `json:"taker_gets"`
			TakerPays Amount `json:"taker_pays"`
		} `json:"offers"`
	}

	err := c.call(ctx, map[string]any{
		"command": "account_offers",
		"account": account,
	}, &result)
	if err != nil {
		return nil, err
	}

	offers := make([]Offer, 0, len(result.Offers))
	for _, o := range result.Offers {
		offers = append(offers, Offer{
			Sequence:  o.Seq,
			Flags:     o.Flags,
			TakerGets: o.TakerGets,
			TakerPays: o.TakerPays,
		})
	}
	return offers, nil
}

// AccountInfo fetches balance and sequence for the account.
func (c *WSClient) AccountInfo(ctx context.Context, account string) (AccountInfo, error) {
	var result struct {
		AccountData struct {
			Account  string `json:"Account"`
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}

	err := c.call(ctx, map[string]any{
		"command": "account_info",
		"account": account,
	}, &result)
	if err != nil {
		return AccountInfo{}, err
	}

	balance, err := parseDrops(result.AccountData.Balance)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("ledger: parse balance: %w", err)
	}

	return AccountInfo{
		Account:  result.AccountData.Account,
		Balance:  balance,
		Sequence: result.AccountData.Sequence,
	}, nil
}

// Sign asks the server to autofill and sign the transaction.
func (c *WSClient) Sign(ctx context.Context, tx Transaction) (string, error) {
	if c.opts.Secret == "" {
		return "", errors.New("ledger: signing secret not configured")
	}

	txJSON, err := toTxJSON(tx)
	if err != nil {
		return "", err
	}

	var result struct {
		TxBlob string `json:"tx_blob"`
	}
	err = c.call(ctx, map[string]any{
		"command": "sign",
		"tx_json": txJSON,
		"secret":  c.opts.Secret,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.TxBlob == "" {
		return "", fmt.Errorf("ledger: sign returned empty blob for %s", tx.TxType())
	}
	return result.TxBlob, nil
}

// SubmitAndWait submits a signed blob and polls for final settlement.
// When validation polling times out the provisional engine result is
// returned with Validated=false.
func (c *WSClient) SubmitAndWait(ctx context.Context, blob string) (TxResult, error) {
	var submitRes struct {
		EngineResult string `json:"engine_result"`
		TxJSON       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	err := c.call(ctx, map[string]any{
		"command": "submit",
		"tx_blob": blob,
	}, &submitRes)
	if err != nil {
		return TxResult{}, err
	}

	res := TxResult{
		Hash:       submitRes.TxJSON.Hash,
		ResultCode: submitRes.EngineResult,
	}

	// Terminal failures never validate; no point polling.
	if !strings.HasPrefix(res.ResultCode, "tes") && res.ResultCode != "terQUEUED" {
		return res, nil
	}

	deadline := time.Now().Add(settleWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(settlePollInterval):
		}

		final, ok, err := c.lookupTx(ctx, res.Hash)
		if err != nil {
			c.logger.Warn().Err(err).Str("hash", res.Hash).Msg("settlement poll failed")
			continue
		}
		if ok {
			return final, nil
		}
	}

	c.logger.Warn().Str("hash", res.Hash).Str("engine_result", res.ResultCode).
		Msg("settlement wait timed out; returning provisional result")
	return res, nil
}

func (c *WSClient) lookupTx(ctx context.Context, hash string) (TxResult, bool, error) {
	var result struct {
		Validated bool `json:"validated"`
		Meta      struct {
			TransactionResult string `json:"TransactionResult"`
		} `json:"meta"`
	}
	err := c.call(ctx, map[string]any{
		"command":     "tx",
		"transaction": hash,
	}, &result)
	if err != nil {
		return TxResult{}, false, err
	}
	if !result.Validated {
		return TxResult{}, false, nil
	}
	return TxResult{
		Hash:       hash,
		ResultCode: result.Meta.TransactionResult,
		Validated:  true,
	}, true, nil
}

func toTxJSON(tx Transaction) (map[string]any, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal %s: %w", tx.TxType(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var _ Client = (*WSClient)(nil)
