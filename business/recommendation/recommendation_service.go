package recommendation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"calcReco/domain"
	"calcReco/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ---- Repository interfaces ----

type HistoryReader interface {
	GetHistory(ctx context.Context, q domain.HistoryQuery) (domain.HistoryPage, error)
}

type PatternRecognizer interface {
	AnalyzeUserPatterns(ctx context.Context, userID string) ([]domain.Pattern, error)
}

type PresetReader interface {
	GetPresets(ctx context.Context, q domain.PresetQuery) (domain.PresetPage, error)
}

// PreferencesReader returns nil, nil when the user has no stored preferences.
type PreferencesReader interface {
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)
}

// ---- Options ----

type Option func(*RecommendationService)

// WithCacheStore replaces the default in-process cache storage.
func WithCacheStore(store CacheStore) Option {
	return func(s *RecommendationService) {
		if store != nil {
			s.store = store
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *RecommendationService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *RecommendationService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// ---- Usecase / Service ----

type RecommendationService struct {
	historyRepo HistoryReader
	patternRepo PatternRecognizer
	presetRepo  PresetReader
	prefsRepo   PreferencesReader

	cfg    Config
	scorer Scorer
	store  CacheStore
	cache  *CacheManager
	flight singleflight.Group

	now   func() time.Time
	newID func() string
}

// NewRecommendationService wires the engine. Any reader except history may be nil,
// in which case that source is treated as empty.
func NewRecommendationService(
	historyRepo HistoryReader,
	patternRepo PatternRecognizer,
	presetRepo PresetReader,
	prefsRepo PreferencesReader,
	cfg Config,
	opts ...Option,
) *RecommendationService {
	cfg = cfg.normalize()

	s := &RecommendationService{
		historyRepo: historyRepo,
		patternRepo: patternRepo,
		presetRepo:  presetRepo,
		prefsRepo:   prefsRepo,
		cfg:         cfg,
		scorer:      NewScorer(cfg.Weights, cfg.SampleSaturation),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		store := NewMemoryStore(cfg.CacheMaxEntries)
		store.now = s.now
		s.store = store
	}
	s.cache = NewCacheManager(s.store, cfg.CacheEnabled, cfg.CacheTTL)

	return s
}

// sourceData is everything the generators read for one request.
type sourceData struct {
	history  []domain.HistoryRecord
	patterns []domain.Pattern
	presets  []domain.Preset
	prefs    *domain.Preferences
	// degraded is set when a secondary source failed; such results are not cached
	degraded bool
}

// GenerateRecommendations returns recommendations for the request, best first.
// Data source failures never surface: a failed history read yields an empty
// list and other failed sources are treated as empty. The only error is a
// context that was already done on entry.
func (s *RecommendationService) GenerateRecommendations(
	ctx context.Context,
	req domain.RecommendationRequest,
) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	key := CacheKey(req)
	if cached, ok := s.cache.Get(ctx, key); ok {
		logger.Debug("recommendation_cache_hit",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", req.UserID,
			"key", key,
			"count", len(cached),
		)
		s.countServed(cached)
		return cached, nil
	}

	var recs []domain.Recommendation
	if s.cfg.CoalesceInFlight {
		// the shared computation outlives any single caller's cancellation
		detached := context.WithoutCancel(ctx)
		v, _, shared := s.flight.Do(key, func() (any, error) {
			return s.compute(detached, key, req), nil
		})
		recs = v.([]domain.Recommendation)
		if shared {
			recs = cloneRecommendations(recs)
		}
	} else {
		recs = s.compute(ctx, key, req)
	}

	s.countServed(recs)
	return recs, nil
}

// GetRecommendationsByType narrows the request to one type and guarantees
// every returned item has that type.
func (s *RecommendationService) GetRecommendationsByType(
	ctx context.Context,
	t domain.RecommendationType,
	req domain.RecommendationRequest,
) ([]domain.Recommendation, error) {
	req.Types = []domain.RecommendationType{t}

	recs, err := s.GenerateRecommendations(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out, nil
}

// CalculateConfidence scores raw signals with this service's weights.
func (s *RecommendationService) CalculateConfidence(sampleSize, successRate, recency, consistency, relevance float64) float64 {
	return s.scorer.Confidence(sampleSize, successRate, recency, consistency, relevance)
}

func (s *RecommendationService) ExplainConfidence(sampleSize, successRate, recency, consistency, relevance float64) domain.ConfidenceBreakdown {
	return s.scorer.Breakdown(sampleSize, successRate, recency, consistency, relevance)
}

func (s *RecommendationService) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	logger.Info("recommendation_cache_cleared", "trace_id", TraceIDFromContext(ctx))
}

func (s *RecommendationService) GetCacheStats(ctx context.Context) domain.CacheStats {
	return s.cache.Stats(ctx)
}

// ---- pipeline ----

func (s *RecommendationService) compute(
	ctx context.Context,
	key string,
	req domain.RecommendationRequest,
) []domain.Recommendation {
	tid := TraceIDFromContext(ctx)
	start := s.now()

	types := resolveTypes(req.Types)
	if len(types) == 0 {
		return []domain.Recommendation{}
	}

	data, ok := s.load(ctx, req)
	if !ok {
		return []domain.Recommendation{}
	}

	types = withoutDisabled(types, data.prefs)

	in := generatorInput{
		history:  data.history,
		patterns: data.patterns,
		presets:  data.presets,
		prefs:    data.prefs,
		req:      req,
		cfg:      s.cfg,
		now:      start,
	}

	minConf := s.effectiveMinConfidence(req)

	var out []domain.Recommendation
	for _, t := range types {
		gen, ok := generatorFor(t)
		if !ok {
			continue
		}
		for _, c := range gen(in) {
			rec := s.score(c, t, start)
			if rec.Confidence < minConf {
				continue
			}
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit := s.limitFor(data.prefs); len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.Recommendation{}
	}

	if data.degraded {
		logger.Warn("recommendation_result_not_cached",
			"trace_id", tid,
			"user_id", req.UserID,
			"reason", "degraded sources",
		)
	} else {
		s.cache.Set(ctx, key, out)
	}

	logger.Debug("recommendations_generated",
		"trace_id", tid,
		"user_id", req.UserID,
		"calculator_type", req.CalculatorType,
		"types", types,
		"history", len(data.history),
		"count", len(out),
		"min_confidence", minConf,
		"elapsed", s.now().Sub(start),
	)

	return out
}

// load reads history first, then the secondary sources concurrently.
// ok is false only when history could not be read.
func (s *RecommendationService) load(ctx context.Context, req domain.RecommendationRequest) (sourceData, bool) {
	tid := TraceIDFromContext(ctx)
	var data sourceData

	if s.historyRepo == nil {
		logger.Warn("recommendation_history_unavailable", "trace_id", tid, "user_id", req.UserID)
		SourceFailuresTotal.WithLabelValues("history").Inc()
		return data, false
	}

	page, err := s.historyRepo.GetHistory(ctx, domain.HistoryQuery{
		UserID:         req.UserID,
		CalculatorType: req.CalculatorType,
		Limit:          s.cfg.HistoryLimit,
	})
	if err != nil {
		logger.Error("recommendation_history_failed",
			"trace_id", tid,
			"user_id", req.UserID,
			"calculator_type", req.CalculatorType,
			"error", err,
		)
		SourceFailuresTotal.WithLabelValues("history").Inc()
		return data, false
	}
	data.history = page.Records

	var (
		patternErr, presetErr, prefsErr error
		g                               errgroup.Group
	)

	if s.patternRepo != nil {
		g.Go(func() error {
			data.patterns, patternErr = s.patternRepo.AnalyzeUserPatterns(ctx, req.UserID)
			return nil
		})
	}
	if s.presetRepo != nil {
		g.Go(func() error {
			var p domain.PresetPage
			p, presetErr = s.presetRepo.GetPresets(ctx, domain.PresetQuery{
				UserID:         req.UserID,
				CalculatorType: req.CalculatorType,
				Limit:          s.cfg.PresetLimit,
			})
			data.presets = p.Presets
			return nil
		})
	}
	if s.prefsRepo != nil {
		g.Go(func() error {
			data.prefs, prefsErr = s.prefsRepo.GetPreferences(ctx, req.UserID)
			return nil
		})
	}
	_ = g.Wait()

	for source, err := range map[string]error{
		"patterns":    patternErr,
		"presets":     presetErr,
		"preferences": prefsErr,
	} {
		if err == nil {
			continue
		}
		logger.Warn("recommendation_source_failed",
			"trace_id", tid,
			"user_id", req.UserID,
			"source", source,
			"error", err,
		)
		SourceFailuresTotal.WithLabelValues(source).Inc()
		data.degraded = true
	}
	if patternErr != nil {
		data.patterns = nil
	}
	if presetErr != nil {
		data.presets = nil
	}
	if prefsErr != nil {
		data.prefs = nil
	}

	return data, true
}

func (s *RecommendationService) score(c candidate, t domain.RecommendationType, now time.Time) domain.Recommendation {
	ev := c.evidence
	rec := c.rec

	rec.ID = s.newID()
	rec.Type = t
	rec.Timestamp = now
	rec.Confidence = s.scorer.Confidence(ev.SampleSize, ev.SuccessRate, ev.Recency, ev.Consistency, ev.Relevance)
	rec.RelevanceScore = relevanceScore(rec.Confidence, ev.SampleSize, s.cfg.typeWeight(t))
	rec.Explanation = fmt.Sprintf(
		"%s Confidence %.2f from %.0f samples, %.0f%% success, recency %.2f, consistency %.2f, relevance %.2f.",
		c.basis, rec.Confidence, ev.SampleSize, clamp01(ev.SuccessRate)*100,
		clamp01(ev.Recency), clamp01(ev.Consistency), clamp01(ev.Relevance),
	)
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec
}

// effectiveMinConfidence: request override, else service config (which
// normalize already defaulted to DefaultMinConfidence).
func (s *RecommendationService) effectiveMinConfidence(req domain.RecommendationRequest) float64 {
	if req.MinConfidence != nil {
		return clamp01(*req.MinConfidence)
	}
	return s.cfg.MinConfidenceThreshold
}

func (s *RecommendationService) limitFor(prefs *domain.Preferences) int {
	limit := s.cfg.MaxRecommendations
	if prefs != nil && prefs.MaxRecommendations > 0 && prefs.MaxRecommendations < limit {
		limit = prefs.MaxRecommendations
	}
	return limit
}

func withoutDisabled(types []domain.RecommendationType, prefs *domain.Preferences) []domain.RecommendationType {
	if prefs == nil || len(prefs.DisabledTypes) == 0 {
		return types
	}
	out := make([]domain.RecommendationType, 0, len(types))
	for _, t := range types {
		if !containsFold(prefs.DisabledTypes, string(t)) {
			out = append(out, t)
		}
	}
	return out
}

func (s *RecommendationService) countServed(recs []domain.Recommendation) {
	for _, r := range recs {
		RecommendationsServedTotal.WithLabelValues(string(r.Type)).Inc()
	}
}
