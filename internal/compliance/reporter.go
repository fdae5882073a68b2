package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotFunc assembles the current status snapshot.
type SnapshotFunc func() Snapshot

// Reporter pushes periodic status snapshots to a sink. Push failures are
// logged and never surfaced; the bot does not depend on the sink.
type Reporter struct {
	sink     Sink
	interval time.Duration
	build    SnapshotFunc
	logger   zerolog.Logger
}

// NewReporter constructs a reporter.
func NewReporter(sink Sink, interval time.Duration, build SnapshotFunc, logger zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Reporter{
		sink:     sink,
		interval: interval,
		build:    build,
		logger:   logger.With().Str("component", "compliance").Logger(),
	}
}

// Run blocks, pushing snapshots on the interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.push(ctx, false)
		}
	}
}

// PushFinal emits the shutdown snapshot.
func (r *Reporter) PushFinal(ctx context.Context) {
	r.push(ctx, true)
}

func (r *Reporter) push(ctx context.Context, final bool) {
	snap := r.build()
	snap.ID = uuid.New().String()
	snap.Timestamp = time.Now().UTC()
	snap.Final = final

	if err := r.sink.Push(ctx, snap); err != nil {
		r.logger.Warn().Err(err).Msg("snapshot push failed")
	}
}
