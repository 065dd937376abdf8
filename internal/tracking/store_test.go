package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

var testTargets = nutrition.Targets{Calories: 500, Proteins: 10, Fat: 20, Carbohydrate: 60}

func riceEntry(portion float64) FoodEntry {
	per100 := nutrition.Nutrients{Calories: 130, Proteins: 2.7, Fat: 0.3, Carbohydrate: 28, Calcium: 10}
	return FoodEntry{
		Name:      "Rice",
		Portion:   portion,
		Nutrients: per100.Scale(portion / 100),
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	kinds  []string
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, kind string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	if ev, ok := v.(Event); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

func TestStore_Scenario(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	rec := s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	require.NotNil(t, rec.PredictedNeeds)
	assert.Equal(t, testTargets, *rec.PredictedNeeds)
	assert.Empty(t, rec.Foods)
	assert.NotNil(t, rec.Foods)

	rec, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)
	assert.InDelta(t, 65.0, rec.TotalNutrients.Calories, 1e-9)
	require.Len(t, rec.Foods, 1)
	assert.NotEmpty(t, rec.Foods[0].ID)
	assert.False(t, rec.Foods[0].AddedAt.IsZero())

	ev, ok := rec.Evaluation()
	require.True(t, ok)
	assert.Equal(t, 13.0, ev.Calories.Percentage)
	assert.Equal(t, StatusLow, ev.Calories.Status)
}

func TestStore_AddFoodWithoutInitialize(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	rec, err := s.AddFood(ctx, "u2", "2024-01-02", riceEntry(100))
	require.NoError(t, err)
	assert.Nil(t, rec.PredictedNeeds)
	assert.InDelta(t, 130.0, rec.TotalNutrients.Calories, 1e-9)

	_, ok := rec.Evaluation()
	assert.False(t, ok)
}

func TestStore_Additivity(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	portions := []float64{10, 25.5, 50, 100, 3.25}
	var want nutrition.Nutrients
	for _, p := range portions {
		e := riceEntry(p)
		want = want.Add(e.Nutrients)
		_, err := s.AddFood(ctx, "u1", "2024-01-01", e)
		require.NoError(t, err)
	}

	rec, err := s.Get(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, rec.Foods, len(portions))
	assert.Equal(t, want, rec.TotalNutrients)
	for i, p := range portions {
		assert.Equal(t, p, rec.Foods[i].Portion, "entries keep insertion order")
	}
}

func TestStore_ReinitializeDiscardsFoods(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	_, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)

	newTargets := nutrition.Targets{Calories: 700, Proteins: 12, Fat: 25, Carbohydrate: 90}
	rec := s.Initialize(ctx, "u1", "2024-01-01", newTargets)

	assert.Empty(t, rec.Foods)
	assert.Equal(t, nutrition.Nutrients{}, rec.TotalNutrients)
	assert.Equal(t, newTargets, *rec.PredictedNeeds)
	assert.Equal(t, 1, s.Len())
}

func TestStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	_, err := s.AddFood(ctx, "u1", "2024-01-02", riceEntry(50))
	require.NoError(t, err)
	_, err = s.AddFood(ctx, "u2", "2024-01-01", riceEntry(100))
	require.NoError(t, err)

	rec, err := s.Get(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, rec.Foods)
	assert.Equal(t, 3, s.Len())
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get(context.Background(), "nobody", "2024-01-01")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	rec, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)

	rec.Foods[0].Name = "mutated"
	rec.PredictedNeeds.Calories = 1
	rec.Foods = append(rec.Foods, riceEntry(1000))

	got, err := s.Get(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "Rice", got.Foods[0].Name)
	assert.Equal(t, 500.0, got.PredictedNeeds.Calories)
	assert.Len(t, got.Foods, 1)
}

func TestStore_AddFoodRejectsInvalidEntry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.AddFood(ctx, "u1", "2024-01-01", FoodEntry{Name: "Rice", Portion: 0})
	assert.True(t, errors.Is(err, ErrInvalidEntry))

	_, err = s.AddFood(ctx, "u1", "2024-01-01", FoodEntry{Portion: 10})
	assert.True(t, errors.Is(err, ErrInvalidEntry))

	assert.Zero(t, s.Len(), "rejected entries must not create records")
}

func TestStore_AddFoodRejectsNonFinite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewStore(WithPublisher(pub))

	tests := []struct {
		name  string
		entry FoodEntry
	}{
		{"NaN portion", FoodEntry{Name: "Rice", Portion: math.NaN()}},
		{"infinite calories", FoodEntry{Name: "Rice", Portion: 10, Nutrients: nutrition.Nutrients{Calories: math.Inf(1)}}},
		{"NaN calcium", FoodEntry{Name: "Rice", Portion: 10, Nutrients: nutrition.Nutrients{Calcium: math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddFood(ctx, "u1", "2024-01-01", tt.entry)
			assert.True(t, errors.Is(err, ErrInvalidEntry), "got %v", err)
		})
	}

	assert.Zero(t, s.Len())
	assert.Empty(t, pub.events)
}

func TestStore_AddFoodRejectsOverflowingTotals(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewStore(WithPublisher(pub))
	s.Initialize(ctx, "u1", "2024-01-01", testTargets)

	big := FoodEntry{Name: "Lard", Portion: 100, Nutrients: nutrition.Nutrients{Fat: math.MaxFloat64}}
	before, err := s.AddFood(ctx, "u1", "2024-01-01", big)
	require.NoError(t, err)

	_, err = s.AddFood(ctx, "u1", "2024-01-01", big)
	assert.True(t, errors.Is(err, ErrInvalidEntry))

	after, err := s.Get(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, before.Foods, after.Foods)
	assert.Equal(t, before.TotalNutrients, after.TotalNutrients)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Len(t, pub.events, 2, "rejected add must not publish")
}

func TestStore_Revision(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	rec := s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	assert.Equal(t, uint64(1), rec.Revision)

	rec, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Revision)

	// Re-initializing resets the foods but not the revision.
	rec = s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	assert.Equal(t, uint64(3), rec.Revision)
	assert.Empty(t, rec.Foods)

	rec, err = s.AddFood(ctx, "u2", "2024-01-01", riceEntry(50))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Revision)
}

func TestStore_ConcurrentAddFood(t *testing.T) {
	const (
		goroutines = 16
		perWorker  = 50
	)
	ctx := context.Background()
	s := NewStore()
	s.Initialize(ctx, "u1", "2024-01-01", testTargets)

	entry := FoodEntry{
		Name:      "Banana",
		Portion:   100,
		Nutrients: nutrition.Nutrients{Calories: 1, Proteins: 2, Fat: 3, Carbohydrate: 4, Calcium: 5},
	}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.AddFood(ctx, "u1", "2024-01-01", entry)
				assert.NoError(t, err)
				_, _ = s.Get(ctx, "u1", "2024-01-01")
			}
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, "u1", "2024-01-01")
	require.NoError(t, err)

	n := float64(goroutines * perWorker)
	assert.Len(t, rec.Foods, goroutines*perWorker)
	assert.Equal(t, nutrition.Nutrients{Calories: n, Proteins: 2 * n, Fat: 3 * n, Carbohydrate: 4 * n, Calcium: 5 * n}, rec.TotalNutrients)

	ids := make(map[string]struct{}, len(rec.Foods))
	for _, f := range rec.Foods {
		ids[f.ID] = struct{}{}
	}
	assert.Len(t, ids, goroutines*perWorker)
	assert.Equal(t, uint64(goroutines*perWorker+1), rec.Revision)
}

func TestStore_ConcurrentEventsCarryDistinctRevisions(t *testing.T) {
	const adds = 64
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewStore(WithPublisher(pub))
	s.Initialize(ctx, "u1", "2024-01-01", testTargets)

	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, pub.events, adds+1)

	// Whatever the delivery order, the highest revision carries the final
	// totals and every revision appears exactly once.
	seen := make(map[uint64]bool, len(pub.events))
	var latest Event
	for _, ev := range pub.events {
		assert.False(t, seen[ev.Revision], "duplicate revision %d", ev.Revision)
		seen[ev.Revision] = true
		if ev.Revision > latest.Revision {
			latest = ev
		}
	}
	assert.Equal(t, uint64(adds+1), latest.Revision)
	assert.InDelta(t, 13.0*adds, latest.Totals.Calories, 1e-6)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewStore(WithRetention(24*time.Hour), WithClock(clock.Now))

	s.Initialize(ctx, "stale", "2024-01-01", testTargets)
	clock.Advance(20 * time.Hour)
	s.Initialize(ctx, "fresh", "2024-01-01", testTargets)
	clock.Advance(5 * time.Hour)

	before := testutil.ToFloat64(EvictionsTotal)
	assert.Equal(t, 1, s.Sweep(clock.Now()))
	assert.Equal(t, before+1, testutil.ToFloat64(EvictionsTotal))

	_, err := s.Get(ctx, "stale", "2024-01-01")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Get(ctx, "fresh", "2024-01-01")
	assert.NoError(t, err)

	// An update refreshes the record.
	clock.Advance(10 * time.Hour)
	_, err = s.AddFood(ctx, "fresh", "2024-01-01", riceEntry(10))
	require.NoError(t, err)
	clock.Advance(23 * time.Hour)
	assert.Zero(t, s.Sweep(clock.Now()))
	assert.Equal(t, 1, s.Len())
}

func TestStore_SweepUnbounded(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	s.Initialize(context.Background(), "u1", "2024-01-01", testTargets)

	assert.Zero(t, s.Sweep(clock.Now().Add(10000*time.Hour)))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Run(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithRetention(time.Minute), WithClock(clock.Now))
	s.Initialize(context.Background(), "u1", "2024-01-01", testTargets)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStore_RunReturnsWithoutRetention(t *testing.T) {
	s := NewStore()
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when retention is zero")
	}
}

func TestStore_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewStore(WithPublisher(pub))

	s.Initialize(ctx, "u1", "2024-01-01", testTargets)
	_, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)

	assert.Equal(t, []string{"initialized", "food_added"}, pub.kinds)
	require.Len(t, pub.events, 2)

	added := pub.events[1]
	assert.Equal(t, EventFoodAdded, added.Type)
	assert.Equal(t, "u1", added.UserID)
	assert.Equal(t, "2024-01-01", added.Date)
	require.NotNil(t, added.Entry)
	assert.Equal(t, "Rice", added.Entry.Name)
	assert.InDelta(t, 65.0, added.Totals.Calories, 1e-9)
	require.NotNil(t, added.PredictedNeeds)
}

func TestStore_PublishErrorDoesNotFailMutation(t *testing.T) {
	ctx := logging.WithUserID(context.Background(), "u1")
	tl := logging.NewTestLogger()
	pub := &recordingPublisher{err: errors.New("nats down")}
	s := NewStore(WithPublisher(pub), WithLogger(tl.Logger))

	before := testutil.ToFloat64(PublishErrorsTotal)
	rec, err := s.AddFood(ctx, "u1", "2024-01-01", riceEntry(50))
	require.NoError(t, err)
	assert.Len(t, rec.Foods, 1)

	tl.AssertLogged(t, zapcore.WarnLevel, "failed to publish tracking event")
	tl.AssertField(t, "failed to publish tracking event", "user.id", "u1")
	assert.Equal(t, before+1, testutil.ToFloat64(PublishErrorsTotal))
}
