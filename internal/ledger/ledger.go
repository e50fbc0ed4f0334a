// Package ledger keeps the audit trail of one engine run: one entry per index
// computation, appended concurrently by reducer goroutines.
package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Ledger is append-only and safe for concurrent use
type Ledger struct {
	runID       string
	fingerprint string

	mu      sync.Mutex
	entries []domain.LedgerEntry

	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithMetrics records every appended entry on the given instruments
func WithMetrics(metrics *infrastructure.BusinessMetrics) Option {
	return func(l *Ledger) {
		l.metrics = metrics
	}
}

// WithLogger sets the logger used for per-entry debug lines
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock replaces the time source for RecordedAt
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates the ledger of a run over the dataset with the given fingerprint
func New(runID, fingerprint string, opts ...Option) *Ledger {
	l := &Ledger{
		runID:       runID,
		fingerprint: fingerprint,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the run the ledger belongs to
func (l *Ledger) RunID() string {
	return l.runID
}

// Record appends an entry. RunID, Fingerprint and RecordedAt are filled in
// when left empty.
func (l *Ledger) Record(ctx context.Context, entry domain.LedgerEntry) {
	if entry.RunID == "" {
		entry.RunID = l.runID
	}
	if entry.Fingerprint == "" {
		entry.Fingerprint = l.fingerprint
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = l.now().UTC()
	}
	if len(entry.Warnings) > 0 {
		entry.Warnings = append([]string(nil), entry.Warnings...)
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	infrastructure.RecordIndexMetrics(ctx, l.metrics, entry.IndexID, entry.Status, entry.Duration)

	l.logger.DebugContext(ctx, "ledger entry recorded",
		"index_id", entry.IndexID,
		"status", entry.Status,
		"duration_ms", entry.Duration.Milliseconds())
}

// Entries returns a copy of the entries in append order
func (l *Ledger) Entries() []domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Ordered returns a copy of the entries sorted by the position of their index
// id in order. Ids not in order go last, in append order.
func (l *Ledger) Ordered(order []string) []domain.LedgerEntry {
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	rank := func(id string) int {
		if p, ok := position[id]; ok {
			return p
		}
		return len(order)
	}

	out := l.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].IndexID) < rank(out[j].IndexID)
	})
	return out
}

// Len returns the number of entries recorded so far
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary counts entries per status
func (l *Ledger) Summary() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range l.entries {
		counts[e.Status]++
	}
	return counts
}
