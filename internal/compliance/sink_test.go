package compliance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Connected:         true,
		ValuationValue:    "1250000",
		ValuationReliable: true,
		OffersCreated:     3,
		OffersCancelled:   1,
		LastOfferHash:     "CAFEBABE",
		Uptime:            "2h0m0s",
	}
}

func TestWebhookSinkDelivers(t *testing.T) {
	var got Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, zerolog.Nop())
	if err := sink.Push(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got.LastOfferHash != "CAFEBABE" || got.OffersCreated != 3 {
		t.Fatalf("webhook received wrong payload: %+v", got)
	}
}

func TestWebhookSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, zerolog.Nop())
	if err := sink.Push(context.Background(), testSnapshot()); err == nil {
		t.Fatal("non-2xx must be an error")
	}
}

func TestTelegramSinkDelivers(t *testing.T) {
	var path string
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sink := NewTelegramSink("TOKEN", "42", srv.URL, time.Second, zerolog.Nop())
	if err := sink.Push(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if payload["chat_id"] != "42" {
		t.Fatalf("unexpected chat id %q", payload["chat_id"])
	}
	if !strings.Contains(payload["text"], "Offers created: 3") {
		t.Fatalf("rendered text missing counters: %q", payload["text"])
	}
}

func TestTelegramSinkRejectsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	sink := NewTelegramSink("TOKEN", "42", srv.URL, time.Second, zerolog.Nop())
	if err := sink.Push(context.Background(), testSnapshot()); err == nil {
		t.Fatal("ok=false must be an error")
	}
}

func TestRenderSnapshotFinalHeader(t *testing.T) {
	snap := testSnapshot()
	snap.Final = true
	text := renderSnapshot(snap)
	if !strings.HasPrefix(text, "[Offer Bot Final Report]") {
		t.Fatalf("final snapshot should use the final header, got %q", text)
	}
}

// memorySink records pushed snapshots; fail makes every push error.
type memorySink struct {
	mu    sync.Mutex
	snaps []Snapshot
	fail  bool
}

func (m *memorySink) Push(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

func TestMultiSinkPushesAllAndReturnsFirstError(t *testing.T) {
	ok := &memorySink{}
	broken := &memorySink{fail: true}
	also := &memorySink{}

	multi := NewMultiSink(broken, ok, also)
	err := multi.Push(context.Background(), testSnapshot())
	if err == nil {
		t.Fatal("failing member should surface an error")
	}
	if ok.count() != 1 || also.count() != 1 {
		t.Fatal("a failing sink must not stop the others")
	}
}

func TestReporterStampsAndPushesFinal(t *testing.T) {
	sink := &memorySink{}
	rep := NewReporter(sink, time.Hour, testSnapshot, zerolog.Nop())

	rep.PushFinal(context.Background())

	if sink.count() != 1 {
		t.Fatalf("expected one pushed snapshot, got %d", sink.count())
	}
	snap := sink.snaps[0]
	if !snap.Final {
		t.Fatal("final push must set the final flag")
	}
	if snap.ID == "" || snap.Timestamp.IsZero() {
		t.Fatal("reporter must stamp id and timestamp")
	}
}

func TestReporterPushesOnInterval(t *testing.T) {
	sink := &memorySink{}
	rep := NewReporter(sink, 10*time.Millisecond, testSnapshot, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rep.Run(ctx)

	if sink.count() < 2 {
		t.Fatalf("expected periodic pushes, got %d", sink.count())
	}
}
