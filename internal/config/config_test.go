package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
ledger:
  account: rBotAccount
offer:
  sell_amount: 100000
  buy_amount: 50000
  total_supply: 100000
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Ledger.URL != "wss://s1.ripple.com" {
		t.Fatalf("default ledger url missing, got %q", cfg.Ledger.URL)
	}
	if cfg.Ledger.MaxRetries != 5 {
		t.Fatalf("default max_retries missing, got %d", cfg.Ledger.MaxRetries)
	}
	if cfg.Offer.CheckInterval != 60*time.Second {
		t.Fatalf("default check_interval missing, got %v", cfg.Offer.CheckInterval)
	}
	if !cfg.Offer.PriceTracking {
		t.Fatal("price tracking should default on")
	}
	if cfg.Oracle.UpdateInterval != time.Hour {
		t.Fatalf("default update_interval missing, got %v", cfg.Oracle.UpdateInterval)
	}
	if cfg.Oracle.MinConfidence != 0.7 {
		t.Fatalf("default min_confidence missing, got %f", cfg.Oracle.MinConfidence)
	}
	if cfg.Compliance.Enabled {
		t.Fatal("compliance should default off")
	}
}

func TestLoadParsesSources(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
oracle:
  sources:
    - name: appraisal
      url: https://example.com/v1/value
      value_path: data.value
      confidence_path: data.confidence
      weight: 2
    - name: floor
      static_value: 900000
      confidence: 0.5
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Oracle.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Oracle.Sources))
	}
	if cfg.Oracle.Sources[0].ValuePath != "data.value" {
		t.Fatalf("unexpected value path %q", cfg.Oracle.Sources[0].ValuePath)
	}
	if cfg.Oracle.Sources[1].StaticValue != 900000 {
		t.Fatalf("unexpected static value %f", cfg.Oracle.Sources[1].StaticValue)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing account",
			body: `
offer:
  sell_amount: 1
  buy_amount: 1
  total_supply: 1
`,
			wantErr: "ledger.account",
		},
		{
			name: "missing total supply with tracking",
			body: `
ledger:
  account: rBot
offer:
  sell_amount: 1
  buy_amount: 1
`,
			wantErr: "offer.total_supply",
		},
		{
			name: "admin fee out of range",
			body: minimalConfig + `
  admin_fee_enabled: true
  admin_fee_pct: 150
`,
			wantErr: "admin_fee_pct",
		},
		{
			name: "source without url or static value",
			body: minimalConfig + `
oracle:
  sources:
    - name: broken
`,
			wantErr: "url or static_value",
		},
		{
			name: "http source without value path",
			body: minimalConfig + `
oracle:
  sources:
    - name: partial
      url: https://example.com
`,
			wantErr: "value_path",
		},
		{
			name: "telegram enabled without token",
			body: minimalConfig + `
compliance:
  telegram:
    enabled: true
    chat_id: "42"
`,
			wantErr: "bot_token",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q should mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestPriceTrackingOffSkipsSupplyCheck(t *testing.T) {
	_, err := Load(writeConfig(t, `
ledger:
  account: rBot
offer:
  sell_amount: 1
  buy_amount: 1
  price_tracking: false
`))
	if err != nil {
		t.Fatalf("total_supply should be optional without price tracking: %v", err)
	}
}
