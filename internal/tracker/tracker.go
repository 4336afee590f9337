// Package tracker maintains the deduplicated view of "orders the operator
// has not acknowledged yet". It polls the storefront order list on a fixed
// interval, diffs the result against a persisted seen-set and exposes the
// resulting notification feed with an unread counter.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tkani-store/notifier/internal/domain"
	"github.com/tkani-store/notifier/internal/observability"
	"github.com/tkani-store/notifier/internal/orderapi"
	"github.com/tkani-store/notifier/internal/seen"
)

// UnreadCap is the highest value the unread counter reports; the dropdown
// renders it as "99+".
const UnreadCap = 99

const (
	DefaultInterval  = 45 * time.Second
	DefaultPageLimit = 30
)

type phase int

const (
	phaseUninitialized phase = iota
	// phaseBaselining: the seen-set was empty at startup. The first poll
	// only records what already exists, it does not notify; otherwise every
	// fresh deployment would flood the operator with old orders.
	phaseBaselining
	phaseSteady
)

type Fetcher interface {
	RecentOrders(ctx context.Context, limit int) ([]map[string]any, error)
}

type SummaryCache interface {
	Put(s domain.OrderSummary)
}

type Tracker struct {
	fetcher  Fetcher
	store    seen.Store
	cache    SummaryCache
	logger   *zap.Logger
	metrics  observability.Metrics
	interval time.Duration
	limit    int

	mu       sync.Mutex
	phase    phase
	seenIDs  map[string]struct{}
	feed     []domain.OrderSummary
	unread   int
	dirty    bool // last Save failed; re-save on next successful mutation
	inFlight atomic.Bool

	refreshCh chan struct{}
}

type Option func(*Tracker)

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithPageLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

func WithCache(c SummaryCache) Option {
	return func(t *Tracker) { t.cache = c }
}

func New(fetcher Fetcher, store seen.Store, logger *zap.Logger, metrics observability.Metrics, opts ...Option) *Tracker {
	t := &Tracker{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		interval:  DefaultInterval,
		limit:     DefaultPageLimit,
		phase:     phaseUninitialized,
		seenIDs:   make(map[string]struct{}),
		refreshCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init loads the persisted seen-set once and decides the starting phase.
// An empty or corrupted set means baselining: everything the first poll
// returns is treated as already known.
func (t *Tracker) Init(ctx context.Context) {
	ids, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("seen-set load failed, starting empty", zap.Error(err))
		ids = nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.seenIDs[id] = struct{}{}
	}
	if len(t.seenIDs) == 0 {
		t.phase = phaseBaselining
	} else {
		t.phase = phaseSteady
	}
	t.logger.Info("tracker initialized",
		zap.Int("seen_ids", len(t.seenIDs)),
		zap.Bool("baselining", t.phase == phaseBaselining),
	)
}

// Start runs the polling loop until ctx is cancelled. It polls once
// immediately, then on every tick or manual refresh.
func (t *Tracker) Start(ctx context.Context) {
	t.Init(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.Poll(ctx)
		case <-t.refreshCh:
			t.Poll(ctx)
		}
	}
}

// Refresh requests one immediate poll cycle. It never blocks; if a poll is
// already pending or in flight the request coalesces into it.
func (t *Tracker) Refresh() {
	select {
	case t.refreshCh <- struct{}{}:
	default:
	}
}

// Poll runs a single poll cycle. Overlapping calls are no-ops: the
// in-flight flag guarantees the seen-set is never raced by two cycles.
func (t *Tracker) Poll(ctx context.Context) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer t.inFlight.Store(false)

	start := time.Now()
	raw, err := t.fetcher.RecentOrders(ctx, t.limit)
	if err != nil {
		t.onPollError(err)
		t.metrics.ObservePoll(sinceMs(start), 0, false)
		return
	}
	if ctx.Err() != nil {
		// stale response after teardown
		return
	}

	summaries := t.normalize(raw)
	newCount := t.apply(ctx, summaries)
	t.metrics.ObservePoll(sinceMs(start), newCount, true)
}

func (t *Tracker) onPollError(err error) {
	if errors.Is(err, orderapi.ErrUnauthorized) {
		// Expired sessions are handled elsewhere; keep the noise down.
		t.logger.Debug("poll skipped: unauthorized", zap.Error(err))
	} else {
		t.logger.Warn("poll failed, will retry next cycle", zap.Error(err))
	}

	// Even a failed first poll completes baselining. A permanently failing
	// API must not leave the operator unable to ever see notifications.
	t.mu.Lock()
	if t.phase == phaseBaselining {
		t.phase = phaseSteady
	}
	t.mu.Unlock()
}

func (t *Tracker) normalize(raw []map[string]any) []domain.OrderSummary {
	summaries := make([]domain.OrderSummary, 0, len(raw))
	for _, record := range raw {
		s, err := domain.Normalize(record)
		if err != nil {
			// no resolvable id: not seen, not unseen, just invisible
			t.metrics.IncDropped()
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// apply diffs the normalized page against the seen-set and updates feed,
// counter and persisted state. Returns how many orders were new.
func (t *Tracker) apply(ctx context.Context, summaries []domain.OrderSummary) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cache != nil {
		for _, s := range summaries {
			t.cache.Put(s)
		}
	}

	if t.phase == phaseBaselining {
		for _, s := range summaries {
			t.seenIDs[s.ID] = struct{}{}
		}
		t.phase = phaseSteady
		t.persistLocked(ctx)
		t.logger.Info("baseline established", zap.Int("orders", len(summaries)))
		return 0
	}

	newCount := 0
	for _, s := range summaries {
		if _, ok := t.seenIDs[s.ID]; !ok {
			t.mergeLocked(s)
			newCount++
		}
		t.seenIDs[s.ID] = struct{}{}
	}
	if newCount > 0 {
		domain.SortFeed(t.feed)
		t.unread += newCount
		if t.unread > UnreadCap {
			t.unread = UnreadCap
		}
		t.logger.Info("new orders discovered",
			zap.Int("count", newCount),
			zap.Int("unread", t.unread),
		)
	}
	if newCount > 0 || t.dirty {
		t.persistLocked(ctx)
	}
	return newCount
}

// mergeLocked replaces an entry with the same id or prepends the summary.
func (t *Tracker) mergeLocked(s domain.OrderSummary) {
	for i := range t.feed {
		if t.feed[i].ID == s.ID {
			t.feed[i] = s
			return
		}
	}
	t.feed = append([]domain.OrderSummary{s}, t.feed...)
}

// persistLocked writes the whole seen-set. Save failures are non-fatal:
// the dirty flag makes the next successful save heal them, since every
// save rewrites the full set.
func (t *Tracker) persistLocked(ctx context.Context) {
	ids := make([]string, 0, len(t.seenIDs))
	for id := range t.seenIDs {
		ids = append(ids, id)
	}
	if err := t.store.Save(ctx, ids); err != nil {
		t.dirty = true
		t.logger.Warn("seen-set save failed", zap.Error(err))
		return
	}
	t.dirty = false
}

// MarkAsRead acknowledges a single notification. No-op when the id is not
// in the feed; the seen-set keeps the id either way.
func (t *Tracker) MarkAsRead(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.feed {
		if t.feed[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	t.feed = append(t.feed[:idx], t.feed[idx+1:]...)
	if t.unread > 0 {
		t.unread--
	}
	t.seenIDs[id] = struct{}{}
	t.persistLocked(ctx)
	return true
}

// MarkAllAsRead acknowledges every notification currently in the feed.
func (t *Tracker) MarkAllAsRead(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.feed {
		t.seenIDs[s.ID] = struct{}{}
	}
	t.feed = nil
	t.unread = 0
	t.persistLocked(ctx)
}

// AddFromExternalSource injects an order received over a side channel
// (the Kafka ingest topic) without waiting for the next poll. It reports
// whether the order surfaced as a new notification; the error is a
// persistence failure, returned so the caller can decide its ack policy.
func (t *Tracker) AddFromExternalSource(ctx context.Context, raw map[string]any) (bool, error) {
	s, err := domain.Normalize(raw)
	if err != nil {
		t.metrics.IncDropped()
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seenIDs[s.ID]; ok {
		t.metrics.IncDeduped()
		return false, nil
	}

	if t.cache != nil {
		t.cache.Put(s)
	}
	t.mergeLocked(s)
	domain.SortFeed(t.feed)
	if t.unread < UnreadCap {
		t.unread++
	}
	t.seenIDs[s.ID] = struct{}{}
	t.persistLocked(ctx)

	t.logger.Info("order injected from external source",
		zap.String("order_id", s.ID),
		zap.Int("unread", t.unread),
	)
	if t.dirty {
		return true, errSaveFailed
	}
	return true, nil
}

var errSaveFailed = errors.New("seen-set save failed")

// Reset erases the persisted seen-set. In-memory state is untouched; the
// next process start re-enters baselining.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.store.Reset(ctx)
}

// Notifications returns a copy of the feed, newest-first.
func (t *Tracker) Notifications() []domain.OrderSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.OrderSummary, len(t.feed))
	copy(out, t.feed)
	return out
}

func (t *Tracker) UnreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread
}

// Loading reports whether a poll request is currently in flight.
func (t *Tracker) Loading() bool {
	return t.inFlight.Load()
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
