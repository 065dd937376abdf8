package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

// Common errors.
var (
	ErrNotFound     = errors.New("no tracking data found")
	ErrInvalidEntry = errors.New("invalid food entry")
)

// FoodEntry is one consumed portion. Entries are immutable once recorded.
type FoodEntry struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Portion   float64             `json:"portion"` // grams
	Nutrients nutrition.Nutrients `json:"nutrients"`
	Notes     string              `json:"notes,omitempty"`
	AddedAt   time.Time           `json:"added_at"`
}

// Record is one user's intake for one calendar date. Revision increases by
// one on every mutation of the day, re-initialization included.
type Record struct {
	UserID         string              `json:"user_id"`
	Date           string              `json:"date"`
	PredictedNeeds *nutrition.Targets  `json:"predicted_needs,omitempty"`
	TotalNutrients nutrition.Nutrients `json:"total_nutrients"`
	Foods          []FoodEntry         `json:"foods"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Revision       uint64              `json:"revision"`
}

// Evaluation returns the record's evaluation, or false when no predicted
// needs were set for the day.
func (r Record) Evaluation() (Evaluation, bool) {
	if r.PredictedNeeds == nil {
		return Evaluation{}, false
	}
	return Evaluate(*r.PredictedNeeds, r.TotalNutrients), true
}

func (r *Record) clone() Record {
	out := *r
	if r.PredictedNeeds != nil {
		targets := *r.PredictedNeeds
		out.PredictedNeeds = &targets
	}
	out.Foods = make([]FoodEntry, len(r.Foods))
	copy(out.Foods, r.Foods)
	return out
}

type key struct {
	user string
	date string
}

// Store holds daily records in memory. It is safe for concurrent use; a
// single lock guards every record so concurrent adds to the same day never
// lose an update.
type Store struct {
	mu        sync.RWMutex
	records   map[key]*Record
	retention time.Duration
	publisher Publisher
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetention evicts records not updated within d when Sweep runs. Zero
// keeps records until the process exits.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		s.retention = d
	}
}

// WithPublisher publishes a tracking Event after every mutation.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:   make(map[key]*Record),
		publisher: NopPublisher{},
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates or overwrites the record for (userID, date) with the
// given predicted needs. Any food already logged for that day is discarded.
func (s *Store) Initialize(ctx context.Context, userID, date string, targets nutrition.Targets) Record {
	s.mu.Lock()
	k := key{userID, date}
	prev, existed := s.records[k]
	rec := &Record{
		UserID:         userID,
		Date:           date,
		PredictedNeeds: &targets,
		Foods:          []FoodEntry{},
		UpdatedAt:      s.now(),
		Revision:       1,
	}
	if existed {
		rec.Revision = prev.Revision + 1
	}
	s.records[k] = rec
	out := rec.clone()
	s.mu.Unlock()

	if !existed {
		RecordsGauge.Inc()
	}
	InitializationsTotal.Inc()
	s.logger.Info(ctx, "tracking initialized",
		zap.Bool("reset", existed),
		zap.Float64("calories", targets.Calories),
	)
	s.publish(ctx, Event{
		Type:           EventInitialized,
		UserID:         userID,
		Date:           date,
		PredictedNeeds: out.PredictedNeeds,
		Totals:         out.TotalNutrients,
		Revision:       out.Revision,
		At:             out.UpdatedAt,
	})
	return out
}

// AddFood appends entry to the record for (userID, date), creating the
// record without predicted needs if absent. A missing ID or AddedAt is
// filled in.
func (s *Store) AddFood(ctx context.Context, userID, date string, entry FoodEntry) (Record, error) {
	if entry.Name == "" {
		return Record{}, fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if !(entry.Portion > 0) {
		return Record{}, fmt.Errorf("%w: portion must be greater than 0", ErrInvalidEntry)
	}
	if !entry.Nutrients.Finite() {
		return Record{}, fmt.Errorf("%w: nutrients must be finite", ErrInvalidEntry)
	}

	now := s.now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = now
	}

	s.mu.Lock()
	k := key{userID, date}
	rec, existed := s.records[k]
	totals := entry.Nutrients
	if existed {
		totals = rec.TotalNutrients.Add(entry.Nutrients)
	}
	if !totals.Finite() {
		s.mu.Unlock()
		return Record{}, fmt.Errorf("%w: daily totals would overflow", ErrInvalidEntry)
	}
	if !existed {
		rec = &Record{UserID: userID, Date: date, Foods: []FoodEntry{}}
		s.records[k] = rec
	}
	rec.Foods = append(rec.Foods, entry)
	rec.TotalNutrients = totals
	rec.UpdatedAt = now
	rec.Revision++
	out := rec.clone()
	s.mu.Unlock()

	if !existed {
		RecordsGauge.Inc()
	}
	FoodsAddedTotal.Inc()
	s.logger.Info(ctx, "food added",
		zap.String("food", entry.Name),
		zap.Float64("portion", entry.Portion),
		zap.Int("entries", len(out.Foods)),
	)
	s.publish(ctx, Event{
		Type:           EventFoodAdded,
		UserID:         userID,
		Date:           date,
		Entry:          &entry,
		PredictedNeeds: out.PredictedNeeds,
		Totals:         out.TotalNutrients,
		Revision:       out.Revision,
		At:             now,
	})
	return out, nil
}

// Get returns a copy of the record for (userID, date), or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, date string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key{userID, date}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.clone(), nil
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sweep evicts records not updated within the retention window and returns
// how many were removed. It is a no-op when retention is zero.
func (s *Store) Sweep(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	evicted := 0
	for k, rec := range s.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.records, k)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		RecordsGauge.Sub(float64(evicted))
		EvictionsTotal.Add(float64(evicted))
	}
	return evicted
}

// Run calls Sweep every interval until ctx is cancelled. It returns
// immediately when retention is zero.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Info(ctx, "evicted stale tracking records",
					zap.Int("evicted", n),
					zap.Duration("retention", s.retention),
				)
			}
		}
	}
}

func (s *Store) publish(ctx context.Context, ev Event) {
	if err := s.publisher.Publish(ctx, string(ev.Type), ev); err != nil {
		PublishErrorsTotal.Inc()
		s.logger.Warn(ctx, "failed to publish tracking event",
			zap.String("event", string(ev.Type)),
			zap.Error(err),
		)
	}
}
