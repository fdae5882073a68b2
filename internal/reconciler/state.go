package reconciler

import (
	"sync"
	"time"
)

// State is the process-wide reconciliation state. It is created by the
// service loop at startup, handed to the reconciler by reference, and
// discarded after the final snapshot at shutdown. Never a package global.
type State struct {
	mu sync.Mutex

	running            bool
	consecutiveErrors  int
	totalFailures      int
	totalOffersCreated int
	totalCancelled     int
	lastOfferHash      string
	startedAt          time.Time
}

// NewState initialises running state for one bot run.
func NewState() *State {
	return &State{running: true, startedAt: time.Now()}
}

// Snapshot is an immutable copy of the counters for reporting.
type Snapshot struct {
	Running           bool
	ConsecutiveErrors int

	// TotalFailures counts every failed cycle over the run; unlike the
	// consecutive counter it is never reset.
	TotalFailures      int
	TotalOffersCreated int
	TotalCancelled     int
	LastOfferHash      string
	Uptime             time.Duration
}

// Snapshot returns a copy of the current counters.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:            s.running,
		ConsecutiveErrors:  s.consecutiveErrors,
		TotalFailures:      s.totalFailures,
		TotalOffersCreated: s.totalOffersCreated,
		TotalCancelled:     s.totalCancelled,
		LastOfferHash:      s.lastOfferHash,
		Uptime:             time.Since(s.startedAt),
	}
}

// Stop clears the running flag.
func (s *State) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether shutdown has been requested.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RecordSuccess resets the consecutive error counter.
func (s *State) RecordSuccess() {
	s.mu.Lock()
	s.consecutiveErrors = 0
	s.mu.Unlock()
}

// RecordFailure increments and returns the consecutive error counter.
// The cumulative failure total advances too.
func (s *State) RecordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors++
	s.totalFailures++
	return s.consecutiveErrors
}

// ResetErrors zeroes the consecutive error counter.
func (s *State) ResetErrors() {
	s.mu.Lock()
	s.consecutiveErrors = 0
	s.mu.Unlock()
}

// RecordOfferCreated notes a successful offer creation.
func (s *State) RecordOfferCreated(hash string) {
	s.mu.Lock()
	s.totalOffersCreated++
	s.lastOfferHash = hash
	s.mu.Unlock()
}

// RecordOfferCancelled notes a successful offer cancellation.
func (s *State) RecordOfferCancelled() {
	s.mu.Lock()
	s.totalCancelled++
	s.mu.Unlock()
}
