package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPSourceOptions parameterise a JSON-over-HTTP valuation source.
type HTTPSourceOptions struct {
	Name           string
	URL            string
	ValuePath      string
	ConfidencePath string

	// Confidence is used when the response carries no confidence field.
	Confidence float64
	Weight     float64
	Timeout    time.Duration
	UserAgent  string
}

// HTTPSource fetches a valuation estimate from a JSON HTTP endpoint.
// Value and confidence are extracted by dot-separated field paths.
type HTTPSource struct {
	opts   HTTPSourceOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTPSource constructs an HTTP valuation source.
func NewHTTPSource(opts HTTPSourceOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		opts:   opts,
		logger: logger.With().Str("component", "source").Str("source", opts.Name).Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return s.opts.Name }

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (Estimate, error) {
	if s.opts.URL == "" {
		return Estimate{}, errors.New("source url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return Estimate{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Estimate{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Estimate{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("source %s returned %d: %s",
			s.opts.Name, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Estimate{}, fmt.Errorf("decode source payload: %w", err)
	}

	value, err := lookupDecimal(doc, s.opts.ValuePath)
	if err != nil {
		return Estimate{}, err
	}

	confidence := s.opts.Confidence
	if s.opts.ConfidencePath != "" {
		if c, err := lookupDecimal(doc, s.opts.ConfidencePath); err == nil {
			confidence = c.InexactFloat64()
		}
	}

	return Estimate{Value: value, Confidence: confidence, Weight: s.opts.Weight}, nil
}

// lookupDecimal walks a dot-separated path through nested JSON objects.
func lookupDecimal(doc map[string]any, path string) (decimal.Decimal, error) {
	if path == "" {
		return decimal.Decimal{}, errors.New("value path not configured")
	}

	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("path %q: %q is not an object", path, key)
		}
		cur, ok = obj[key]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("path %q: key %q missing", path, key)
		}
	}

	switch v := cur.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("path %q: %w", path, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("path %q: unsupported type %T", path, cur)
	}
}

// StaticSource serves a fixed estimate from configuration. Used by
// operators running without live valuation feeds.
type StaticSource struct {
	name       string
	value      decimal.Decimal
	confidence float64
	weight     float64
}

// NewStaticSource constructs a fixed-value source.
func NewStaticSource(name string, value decimal.Decimal, confidence, weight float64) *StaticSource {
	return &StaticSource{name: name, value: value, confidence: confidence, weight: weight}
}

// Name implements Source.
func (s *StaticSource) Name() string { return s.name }

// Fetch implements Source.
func (s *StaticSource) Fetch(_ context.Context) (Estimate, error) {
	if s.value.Sign() <= 0 {
		return Estimate{}, errors.New("static source value not configured")
	}
	return Estimate{Value: s.value, Confidence: s.confidence, Weight: s.weight}, nil
}

var (
	_ Source = (*HTTPSource)(nil)
	_ Source = (*StaticSource)(nil)
)
