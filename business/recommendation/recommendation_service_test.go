//go:build !integration

package recommendation

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"calcReco/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// ---- fakes ----

type fakeHistory struct {
	records []domain.HistoryRecord
	err     error
	calls   atomic.Int32
	// when set, GetHistory blocks until it is closed
	gate chan struct{}
	// when set, receives one value per GetHistory call before it blocks
	entered chan struct{}

	mu        sync.Mutex
	lastQuery domain.HistoryQuery
	traceIDs  []string
}

func (f *fakeHistory) GetHistory(ctx context.Context, q domain.HistoryQuery) (domain.HistoryPage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastQuery = q
	f.traceIDs = append(f.traceIDs, TraceIDFromContext(ctx))
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return domain.HistoryPage{}, err
	}
	if f.err != nil {
		return domain.HistoryPage{}, f.err
	}
	return domain.HistoryPage{Records: f.records, Total: int64(len(f.records))}, nil
}

type fakePatterns struct {
	patterns []domain.Pattern
	err      error
}

func (f *fakePatterns) AnalyzeUserPatterns(context.Context, string) ([]domain.Pattern, error) {
	return f.patterns, f.err
}

type fakePresets struct {
	presets []domain.Preset
	err     error
}

func (f *fakePresets) GetPresets(context.Context, domain.PresetQuery) (domain.PresetPage, error) {
	return domain.PresetPage{Presets: f.presets, Total: int64(len(f.presets))}, f.err
}

type fakePrefs struct {
	prefs *domain.Preferences
	err   error
}

func (f *fakePrefs) GetPreferences(context.Context, string) (*domain.Preferences, error) {
	return f.prefs, f.err
}

func laserHistory() []domain.HistoryRecord {
	inputs := map[string]any{"thickness": 5, "material": "steel"}
	return []domain.HistoryRecord{
		record("1", "laser-cutting-cost", testNow.Add(-2*time.Hour), inputs, map[string]any{"cost": 50}),
		record("2", "laser-cutting-cost", testNow.Add(-time.Hour), inputs, map[string]any{"cost": 50}),
	}
}

func setupService(t *testing.T, history *fakeHistory, cfg Config) *RecommendationService {
	t.Helper()
	return NewRecommendationService(history, &fakePatterns{}, &fakePresets{}, &fakePrefs{}, cfg,
		WithClock(func() time.Time { return testNow }),
	)
}

func cachedConfig() Config {
	cfg := DefaultConfig()
	cfg.CacheEnabled = true
	return cfg
}

// ---- tests ----

func TestGenerateRecommendations_EmptyHistory(t *testing.T) {
	svc := setupService(t, &fakeHistory{}, DefaultConfig())

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{
		UserID: "u",
		Types:  []domain.RecommendationType{domain.RecommendationParameterValue},
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGenerateRecommendations_LaserCuttingCombination(t *testing.T) {
	svc := setupService(t, &fakeHistory{records: laserHistory()}, DefaultConfig())

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{
		UserID: "u1",
		Types:  []domain.RecommendationType{domain.RecommendationParameterCombination},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, domain.RecommendationParameterCombination, rec.Type)
	assert.Equal(t, map[string]any{"thickness": 5, "material": "steel"}, rec.Data["parameters"])
	assert.Equal(t, 1.0, rec.Data["successRate"])
	assert.Contains(t, rec.Explanation, "2 samples")
}

func TestGenerateRecommendations_RequiredShape(t *testing.T) {
	svc := setupService(t, &fakeHistory{records: laserHistory()}, DefaultConfig())

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for _, r := range got {
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.Type)
		assert.NotEmpty(t, r.Title)
		assert.NotEmpty(t, r.Description)
		assert.NotEmpty(t, r.Explanation)
		assert.GreaterOrEqual(t, r.Confidence, DefaultMinConfidence)
		assert.LessOrEqual(t, r.Confidence, 1.0)
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.Equal(t, testNow, r.Timestamp)
	}

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].RelevanceScore, got[i].RelevanceScore)
	}
}

func TestGenerateRecommendations_ThresholdFiltering(t *testing.T) {
	svc := setupService(t, &fakeHistory{records: laserHistory()}, DefaultConfig())
	ctx := context.Background()

	base, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, base)

	top := 0.0
	for _, r := range base {
		top = max(top, r.Confidence)
	}
	require.Less(t, top, 0.9)

	high := 0.9
	strict, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{UserID: "u1", MinConfidence: &high})
	require.NoError(t, err)
	assert.Less(t, len(strict), len(base))
	for _, r := range strict {
		assert.GreaterOrEqual(t, r.Confidence, 0.9)
	}
}

func TestGetRecommendationsByType_OnlyThatType(t *testing.T) {
	svc := setupService(t, &fakeHistory{records: laserHistory()}, DefaultConfig())

	for _, typ := range domain.AllRecommendationTypes {
		got, err := svc.GetRecommendationsByType(context.Background(), typ, domain.RecommendationRequest{UserID: "u1"})
		require.NoError(t, err)
		for _, r := range got {
			assert.Equal(t, typ, r.Type)
		}
	}
}

func TestGenerateRecommendations_CacheHitSkipsHistory(t *testing.T) {
	history := &fakeHistory{records: laserHistory()}
	svc := setupService(t, history, cachedConfig())
	ctx := context.Background()
	req := domain.RecommendationRequest{UserID: "u1"}

	first, err := svc.GenerateRecommendations(ctx, req)
	require.NoError(t, err)
	second, err := svc.GenerateRecommendations(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), history.calls.Load())
	assert.Equal(t, first, second)

	stats := svc.GetCacheStats(ctx)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	svc.ClearCache(ctx)
	_, err = svc.GenerateRecommendations(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), history.calls.Load())
}

func TestGenerateRecommendations_CacheDisabledByDefault(t *testing.T) {
	history := &fakeHistory{records: laserHistory()}
	svc := setupService(t, history, DefaultConfig())
	req := domain.RecommendationRequest{UserID: "u1"}

	_, _ = svc.GenerateRecommendations(context.Background(), req)
	_, _ = svc.GenerateRecommendations(context.Background(), req)

	assert.Equal(t, int32(2), history.calls.Load())
}

func TestGenerateRecommendations_HistoryFailure(t *testing.T) {
	history := &fakeHistory{err: errors.New("db down")}
	svc := setupService(t, history, cachedConfig())

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, svc.GetCacheStats(context.Background()).Size)
}

func TestGenerateRecommendations_SecondarySourceFailure(t *testing.T) {
	svc := NewRecommendationService(
		&fakeHistory{records: laserHistory()},
		&fakePatterns{err: errors.New("patterns down")},
		&fakePresets{err: errors.New("presets down")},
		&fakePrefs{err: errors.New("prefs down")},
		cachedConfig(),
		WithClock(func() time.Time { return testNow }),
	)
	ctx := context.Background()

	got, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, 0, svc.GetCacheStats(ctx).Size, "degraded results are not cached")
}

func TestGenerateRecommendations_CancelledContext(t *testing.T) {
	history := &fakeHistory{records: laserHistory()}
	svc := setupService(t, history, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{UserID: "u1"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), history.calls.Load())
}

func TestGenerateRecommendations_Preferences(t *testing.T) {
	history := &fakeHistory{records: laserHistory()}
	prefs := &fakePrefs{prefs: &domain.Preferences{
		UserID:             "u1",
		DisabledTypes:      datatypes.JSONSlice[string]{string(domain.RecommendationParameterValue)},
		MaxRecommendations: 1,
	}}
	svc := NewRecommendationService(history, nil, nil, prefs, DefaultConfig(),
		WithClock(func() time.Time { return testNow }),
	)

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, domain.RecommendationParameterValue, got[0].Type)
}

func TestGenerateRecommendations_MaxRecommendations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecommendations = 2
	svc := setupService(t, &fakeHistory{records: laserHistory()}, cfg)

	got, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGenerateRecommendations_PassesFilterToHistory(t *testing.T) {
	history := &fakeHistory{}
	svc := setupService(t, history, DefaultConfig())

	_, err := svc.GenerateRecommendations(context.Background(), domain.RecommendationRequest{
		UserID:         "u1",
		CalculatorType: "beam",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryQuery{UserID: "u1", CalculatorType: "beam", Limit: defaultHistoryLimit}, history.lastQuery)
}

// lookupStore signals every cache lookup so tests know a caller has
// passed the cache check and is headed for computation.
type lookupStore struct {
	*MemoryStore
	lookups chan struct{}
}

func (l *lookupStore) Get(ctx context.Context, key string) ([]domain.Recommendation, bool, error) {
	recs, ok, err := l.MemoryStore.Get(ctx, key)
	l.lookups <- struct{}{}
	return recs, ok, err
}

func newLookupStore() *lookupStore {
	return &lookupStore{MemoryStore: NewMemoryStore(0), lookups: make(chan struct{}, 8)}
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d signals", i, n)
		}
	}
}

// Concurrent identical misses are not deduplicated unless coalescing is on.
func TestGenerateRecommendations_ConcurrentMisses(t *testing.T) {
	t.Run("default recomputes", func(t *testing.T) {
		history := &fakeHistory{records: laserHistory(), gate: make(chan struct{}), entered: make(chan struct{}, 2)}
		svc := setupService(t, history, cachedConfig())
		req := domain.RecommendationRequest{UserID: "u1"}

		var wg sync.WaitGroup
		results := make([][]domain.Recommendation, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = svc.GenerateRecommendations(context.Background(), req)
			}(i)
		}

		// both callers are inside the history read before either can populate the cache
		waitFor(t, history.entered, 2)
		close(history.gate)
		wg.Wait()

		for _, r := range results {
			assert.NotEmpty(t, r)
		}
		assert.Equal(t, int32(2), history.calls.Load())
	})

	t.Run("coalesced computes once", func(t *testing.T) {
		history := &fakeHistory{records: laserHistory(), gate: make(chan struct{}), entered: make(chan struct{}, 2)}
		store := newLookupStore()
		cfg := cachedConfig()
		cfg.CoalesceInFlight = true
		svc := NewRecommendationService(history, &fakePatterns{}, &fakePresets{}, &fakePrefs{}, cfg,
			WithClock(func() time.Time { return testNow }),
			WithCacheStore(store),
		)
		req := domain.RecommendationRequest{UserID: "u1"}

		var wg sync.WaitGroup
		results := make([][]domain.Recommendation, 2)
		run := func(i int) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = svc.GenerateRecommendations(context.Background(), req)
			}()
		}

		run(0)
		waitFor(t, store.lookups, 1)
		waitFor(t, history.entered, 1)
		run(1)
		waitFor(t, store.lookups, 1)

		close(history.gate)
		wg.Wait()

		for _, r := range results {
			assert.NotEmpty(t, r)
		}
		assert.Equal(t, int32(1), history.calls.Load())
	})
}

func TestGenerateRecommendations_CoalescedSurvivesLeaderCancel(t *testing.T) {
	history := &fakeHistory{records: laserHistory(), gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	store := newLookupStore()
	cfg := cachedConfig()
	cfg.CoalesceInFlight = true
	svc := NewRecommendationService(history, &fakePatterns{}, &fakePresets{}, &fakePrefs{}, cfg,
		WithClock(func() time.Time { return testNow }),
		WithCacheStore(store),
	)
	req := domain.RecommendationRequest{UserID: "u1"}

	leaderCtx, cancel := context.WithCancel(WithTraceID(context.Background(), "trace-leader"))
	defer cancel()

	var wg sync.WaitGroup
	var leader, follower []domain.Recommendation

	wg.Add(1)
	go func() {
		defer wg.Done()
		leader, _ = svc.GenerateRecommendations(leaderCtx, req)
	}()
	waitFor(t, history.entered, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		follower, _ = svc.GenerateRecommendations(context.Background(), req)
	}()
	waitFor(t, store.lookups, 2)

	cancel()
	close(history.gate)
	wg.Wait()

	assert.NotEmpty(t, leader)
	assert.NotEmpty(t, follower)

	history.mu.Lock()
	defer history.mu.Unlock()
	require.NotEmpty(t, history.traceIDs)
	assert.Equal(t, "trace-leader", history.traceIDs[0])
}

func TestService_CalculateConfidence(t *testing.T) {
	svc := setupService(t, &fakeHistory{}, DefaultConfig())

	assert.Equal(t, CalculateConfidence(3, 0.5, 0.5, 0.5, 0.5), svc.CalculateConfidence(3, 0.5, 0.5, 0.5, 0.5))
	assert.Equal(t, svc.CalculateConfidence(3, 0.5, 0.5, 0.5, 0.5), svc.ExplainConfidence(3, 0.5, 0.5, 0.5, 0.5).Confidence)
}

func TestGenerateRecommendations_NaNThresholdKeepsTypesApart(t *testing.T) {
	history := &fakeHistory{records: append(laserHistory(),
		record("3", "beam", testNow.Add(-50*time.Minute), map[string]any{"load": 1}, map[string]any{"ok": 1}),
		record("4", "laser-cutting-cost", testNow.Add(-40*time.Minute), map[string]any{"thickness": 5}, map[string]any{"cost": 1}),
		record("5", "beam", testNow.Add(-30*time.Minute), map[string]any{"load": 1}, map[string]any{"ok": 1}),
	)}
	svc := setupService(t, history, cachedConfig())
	ctx := context.Background()
	nan := math.NaN()

	combos, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{
		UserID:        "u1",
		Types:         []domain.RecommendationType{domain.RecommendationParameterCombination},
		MinConfidence: &nan,
	})
	require.NoError(t, err)
	require.NotEmpty(t, combos)

	workflows, err := svc.GenerateRecommendations(ctx, domain.RecommendationRequest{
		UserID:        "u1",
		Types:         []domain.RecommendationType{domain.RecommendationWorkflow},
		MinConfidence: &nan,
	})
	require.NoError(t, err)
	require.NotEmpty(t, workflows)
	for _, r := range workflows {
		assert.Equal(t, domain.RecommendationWorkflow, r.Type)
	}
	assert.Equal(t, int32(2), history.calls.Load())
}
