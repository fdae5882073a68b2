package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClient counts lifecycle calls and fails connects on demand.
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectErrs  int // fail this many Connect calls before succeeding
	connects     int
	disconnects  int
	alwaysFail   bool
	offersErr    error
	offers       []Offer
	offersCalled int
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.alwaysFail || f.connectErrs >= f.connects {
		return errors.New("dial refused")
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) AccountOffers(ctx context.Context, account string) ([]Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offersCalled++
	if f.offersErr != nil {
		return nil, f.offersErr
	}
	return f.offers, nil
}

func (f *fakeClient) AccountInfo(ctx context.Context, account string) (AccountInfo, error) {
	return AccountInfo{Account: account}, nil
}

func (f *fakeClient) Sign(ctx context.Context, tx Transaction) (string, error) {
	return "blob", nil
}

func (f *fakeClient) SubmitAndWait(ctx context.Context, blob string) (TxResult, error) {
	return TxResult{Hash: "hash", ResultCode: "tesSUCCESS", Validated: true}, nil
}

func testTimings() Timings {
	return Timings{
		BackoffStep:    time.Millisecond,
		BackoffCeiling: 5 * time.Millisecond,
		ReconnectDelay: time.Millisecond,
	}
}

func TestConnectWithRetryEventualSuccess(t *testing.T) {
	client := &fakeClient{connectErrs: 2}
	conn := NewResilientConn(client, 5, zerolog.Nop()).WithTimings(testTimings())

	if err := conn.ConnectWithRetry(context.Background()); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if client.connects != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.connects)
	}
}

func TestConnectWithRetryExhaustionIsStartupError(t *testing.T) {
	client := &fakeClient{alwaysFail: true}
	conn := NewResilientConn(client, 3, zerolog.Nop()).WithTimings(testTimings())

	err := conn.ConnectWithRetry(context.Background())
	if err == nil {
		t.Fatal("expected startup error")
	}
	var startup *StartupError
	if !errors.As(err, &startup) {
		t.Fatalf("expected StartupError, got %T", err)
	}
	if startup.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", startup.Attempts)
	}
	if client.connects != 3 {
		t.Fatalf("expected exactly maxRetries connects, got %d", client.connects)
	}
}

func TestEnsureConnectedNoopWhenLive(t *testing.T) {
	client := &fakeClient{connected: true}
	conn := NewResilientConn(client, 3, zerolog.Nop()).WithTimings(testTimings())

	if err := conn.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("live connection should be a no-op: %v", err)
	}
	if client.connects != 0 || client.disconnects != 0 {
		t.Fatal("no lifecycle calls expected on a live connection")
	}
}

func TestEnsureConnectedReconnects(t *testing.T) {
	client := &fakeClient{}
	conn := NewResilientConn(client, 3, zerolog.Nop()).WithTimings(testTimings())

	if err := conn.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("reconnect should succeed: %v", err)
	}
	if client.disconnects != 1 || client.connects != 1 {
		t.Fatalf("expected disconnect-then-connect, got %d/%d", client.disconnects, client.connects)
	}
	if !client.IsConnected() {
		t.Fatal("client should be connected after reconnect")
	}
}

func TestReconnectFailureIsConnectionError(t *testing.T) {
	client := &fakeClient{alwaysFail: true}
	conn := NewResilientConn(client, 3, zerolog.Nop()).WithTimings(testTimings())

	err := conn.Reconnect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %T", err)
	}
}
