package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is one periodic status report pushed to the custody/compliance
// side. Write-only from the bot's perspective.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Connected bool `json:"connected"`

	// Account health as reported by the ledger; balance is in drops.
	AccountBalance  string `json:"account_balance,omitempty"`
	AccountSequence uint32 `json:"account_sequence,omitempty"`

	ValuationValue      string  `json:"valuation_value,omitempty"`
	ValuationConfidence float64 `json:"valuation_confidence,omitempty"`
	ValuationReliable   bool    `json:"valuation_reliable"`
	ValuationAge        string  `json:"valuation_age,omitempty"`

	OffersCreated     int    `json:"offers_created"`
	OffersCancelled   int    `json:"offers_cancelled"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastOfferHash     string `json:"last_offer_hash,omitempty"`
	Uptime            string `json:"uptime"`

	Final bool `json:"final,omitempty"`
}

// Sink receives status snapshots, fire-and-forget.
type Sink interface {
	Push(ctx context.Context, snap Snapshot) error
}

// WebhookSink POSTs snapshots as JSON to a configured endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookSink constructs a webhook compliance sink.
func NewWebhookSink(url string, timeout time.Duration, logger zerolog.Logger) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "compliance_webhook").Logger(),
	}
}

// Push implements Sink.
func (s *WebhookSink) Push(ctx context.Context, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("compliance webhook returned %d", resp.StatusCode)
	}

	s.logger.Debug().Str("id", snap.ID).Msg("snapshot delivered")
	return nil
}

// TelegramSink pushes a rendered snapshot via the Telegram Bot API.
type TelegramSink struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramSink constructs a Telegram compliance sink.
func NewTelegramSink(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "compliance_telegram").Logger(),
	}
}

// Push implements Sink.
func (s *TelegramSink) Push(ctx context.Context, snap Snapshot) error {
	payload := map[string]string{
		"chat_id": s.chatID,
		"text":    renderSnapshot(snap),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	s.logger.Debug().Str("id", snap.ID).Msg("snapshot delivered")
	return nil
}

func renderSnapshot(snap Snapshot) string {
	builder := strings.Builder{}
	header := "[Offer Bot Status]"
	if snap.Final {
		header = "[Offer Bot Final Report]"
	}
	builder.WriteString(header + "\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", snap.Timestamp.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Connected: %t\n", snap.Connected))
	if snap.AccountBalance != "" {
		builder.WriteString(fmt.Sprintf("Account balance: %s drops (sequence %d)\n", snap.AccountBalance, snap.AccountSequence))
	}
	if snap.ValuationValue != "" {
		builder.WriteString(fmt.Sprintf("Valuation: %s (confidence %.2f, reliable %t, age %s)\n",
			snap.ValuationValue, snap.ValuationConfidence, snap.ValuationReliable, snap.ValuationAge))
	}
	builder.WriteString(fmt.Sprintf("Offers created: %d, cancelled: %d\n", snap.OffersCreated, snap.OffersCancelled))
	builder.WriteString(fmt.Sprintf("Consecutive errors: %d\n", snap.ConsecutiveErrors))
	if snap.LastOfferHash != "" {
		builder.WriteString(fmt.Sprintf("Last offer: %s\n", snap.LastOfferHash))
	}
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", snap.Uptime))
	return builder.String()
}

// MultiSink fans one snapshot out to several sinks; each push is
// independent and the first error is returned after all attempts.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Push implements Sink.
func (m *MultiSink) Push(ctx context.Context, snap Snapshot) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Push(ctx, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ Sink = (*WebhookSink)(nil)
	_ Sink = (*TelegramSink)(nil)
	_ Sink = (*MultiSink)(nil)
)
