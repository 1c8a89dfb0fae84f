// Package realtime tracks which connections watch which event and pushes
// seat-count snapshots to them.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/domain"
	"github.com/cimillas/grabticket/internal/metrics"
)

// Subscriber receives seat-count snapshots. SendSnapshot must not block; an
// error means the subscriber can no longer be served and gets pruned.
type Subscriber interface {
	SendSnapshot(snapshot domain.SeatSnapshot) error
}

// SnapshotSource loads the current availability of an event.
type SnapshotSource interface {
	SeatCounts(ctx context.Context, eventID string) ([]domain.SeatCount, error)
}

type subscription struct {
	mu          sync.Mutex
	sent        bool
	lastVersion uint64
}

type eventSubs struct {
	version uint64
	subs    map[Subscriber]*subscription
}

// Registry maps events to their subscribers. It is safe for concurrent use.
type Registry struct {
	source SnapshotSource
	logger *zap.Logger

	mu     sync.RWMutex
	events map[string]*eventSubs
}

func NewRegistry(source SnapshotSource, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		source: source,
		logger: logger.With(zap.String("component", "realtime_registry")),
		events: make(map[string]*eventSubs),
	}
}

// Subscribe adds sub to eventID and sends it the current snapshot. When the
// snapshot cannot be loaded or sent the subscription is removed again.
func (r *Registry) Subscribe(ctx context.Context, eventID string, sub Subscriber) error {
	r.mu.Lock()
	entry, ok := r.events[eventID]
	if !ok {
		entry = &eventSubs{subs: make(map[Subscriber]*subscription)}
		r.events[eventID] = entry
	}
	s, existed := entry.subs[sub]
	if !existed {
		s = &subscription{}
		entry.subs[sub] = s
		metrics.Subscribers.Inc()
	}
	// Any publish after this point has a higher version and already
	// includes sub, so a stale initial snapshot is discarded in deliver.
	version := entry.version
	r.mu.Unlock()

	counts, err := r.source.SeatCounts(ctx, eventID)
	if err != nil {
		r.Unsubscribe(eventID, sub)
		return fmt.Errorf("load seat counts: %w", err)
	}

	snapshot := domain.SeatSnapshot{EventID: eventID, Version: version, Tickets: counts}
	if err := r.deliver(s, sub, snapshot); err != nil {
		r.Unsubscribe(eventID, sub)
		return fmt.Errorf("send initial snapshot: %w", err)
	}
	return nil
}

// Unsubscribe removes sub from eventID. Removing an unknown subscriber is a no-op.
func (r *Registry) Unsubscribe(eventID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(eventID, sub)
}

func (r *Registry) removeLocked(eventID string, sub Subscriber) bool {
	entry, ok := r.events[eventID]
	if !ok {
		return false
	}
	if _, ok := entry.subs[sub]; !ok {
		return false
	}
	delete(entry.subs, sub)
	metrics.Subscribers.Dec()
	if len(entry.subs) == 0 {
		delete(r.events, eventID)
	}
	return true
}

// Publish sends counts to every subscriber of eventID. Subscribers whose send
// fails are pruned; the rest still receive the snapshot.
func (r *Registry) Publish(_ context.Context, eventID string, counts []domain.SeatCount) {
	type target struct {
		sub Subscriber
		s   *subscription
	}

	r.mu.Lock()
	entry, ok := r.events[eventID]
	if !ok {
		r.mu.Unlock()
		return
	}
	entry.version++
	snapshot := domain.SeatSnapshot{EventID: eventID, Version: entry.version, Tickets: counts}
	targets := make([]target, 0, len(entry.subs))
	for sub, s := range entry.subs {
		targets = append(targets, target{sub: sub, s: s})
	}
	r.mu.Unlock()

	metrics.SnapshotsPublished.Inc()

	var failed []Subscriber
	for _, t := range targets {
		if err := r.deliver(t.s, t.sub, snapshot); err != nil {
			r.logger.Warn("pruning subscriber",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			failed = append(failed, t.sub)
		}
	}
	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	for _, sub := range failed {
		if r.removeLocked(eventID, sub) {
			metrics.SubscribersPruned.Inc()
		}
	}
	r.mu.Unlock()
}

// Count returns the number of subscribers watching eventID.
func (r *Registry) Count(eventID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.events[eventID]; ok {
		return len(entry.subs)
	}
	return 0
}

func (r *Registry) deliver(s *subscription, sub Subscriber, snapshot domain.SeatSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent && snapshot.Version < s.lastVersion {
		return nil
	}
	if err := sub.SendSnapshot(snapshot); err != nil {
		return err
	}
	s.sent = true
	s.lastVersion = snapshot.Version
	return nil
}
