package unread

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StateSource emits successive unread snapshots for one viewer. The
// stream-backed and poll-backed implementations feed the same Tracker, so
// whichever path delivers, the derived state is the same.
type StateSource interface {
	// Snapshots yields recomputed state. The channel closes when Run returns.
	Snapshots() <-chan Snapshot
	// Run blocks until ctx is done, producing snapshots as its trigger fires.
	Run(ctx context.Context) error
}

// emitter hands snapshots to the consumer, dropping any whose Seq is older
// than the newest already sent. Seq is assigned at fetch issue time, so a
// late-arriving stale fetch never overwrites fresher state.
type emitter struct {
	mu      sync.Mutex
	lastSeq int64
	out     chan Snapshot
}

func newEmitter() *emitter {
	return &emitter{out: make(chan Snapshot, 4)}
}

func (e *emitter) send(ctx context.Context, snap Snapshot) {
	e.mu.Lock()
	if snap.Seq < e.lastSeq {
		e.mu.Unlock()
		return
	}
	e.lastSeq = snap.Seq
	e.mu.Unlock()

	select {
	case e.out <- snap:
	case <-ctx.Done():
	}
}

// StreamSource recomputes on realtime hints: an initial snapshot at start,
// then one per Hint. It does not open its own pub/sub connection; the
// caller owning the event subscription calls Hint for each event, so one
// connection serves both the raw event feed and the unread recompute.
type StreamSource struct {
	tracker  *Tracker
	viewerID uint64
	logger   *slog.Logger
	emitter  *emitter
	hints    chan struct{}
}

func NewStreamSource(tracker *Tracker, viewerID uint64, logger *slog.Logger) *StreamSource {
	return &StreamSource{
		tracker:  tracker,
		viewerID: viewerID,
		logger:   logger,
		emitter:  newEmitter(),
		hints:    make(chan struct{}, 1),
	}
}

func (s *StreamSource) Snapshots() <-chan Snapshot {
	return s.emitter.out
}

// Hint requests a recompute. Hints coalesce: while one is already pending,
// further calls are no-ops, so an event burst triggers one fetch, not a
// stack of them.
func (s *StreamSource) Hint() {
	select {
	case s.hints <- struct{}{}:
	default:
	}
}

func (s *StreamSource) Run(ctx context.Context) error {
	defer close(s.emitter.out)

	s.refresh(ctx)

	for {
		select {
		case <-s.hints:
			s.refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *StreamSource) refresh(ctx context.Context) {
	snap, err := s.tracker.Snapshot(ctx, s.viewerID)
	if err != nil {
		s.logger.Warn("stream-driven unread recompute failed", "viewer", s.viewerID, "err", err)
		return
	}
	s.emitter.send(ctx, snap)
}

// PollSource recomputes on a fixed interval. It is the fallback when no
// hints arrive, the stream being down included. Ticks are
// single-flight: if a fetch is still running when the next tick fires, the
// tick is skipped rather than stacking a second fetch.
type PollSource struct {
	tracker  *Tracker
	viewerID uint64
	interval time.Duration
	logger   *slog.Logger
	emitter  *emitter
	inFlight sync.Mutex
}

func NewPollSource(tracker *Tracker, viewerID uint64, interval time.Duration, logger *slog.Logger) *PollSource {
	return &PollSource{
		tracker:  tracker,
		viewerID: viewerID,
		interval: interval,
		logger:   logger,
		emitter:  newEmitter(),
	}
}

func (p *PollSource) Snapshots() <-chan Snapshot {
	return p.emitter.out
}

func (p *PollSource) Run(ctx context.Context) error {
	defer close(p.emitter.out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *PollSource) poll(ctx context.Context) {
	if !p.inFlight.TryLock() {
		return
	}
	defer p.inFlight.Unlock()

	snap, err := p.tracker.Snapshot(ctx, p.viewerID)
	if err != nil {
		p.logger.Warn("poll-driven unread recompute failed", "viewer", p.viewerID, "err", err)
		return
	}
	p.emitter.send(ctx, snap)
}
