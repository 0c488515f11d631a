package recommendation

import (
	"time"

	"calcReco/domain"
)

// Weights of the five confidence signals. They are expected to sum to 1.
type Weights struct {
	Sample      float64
	Success     float64
	Recency     float64
	Consistency float64
	Relevance   float64
}

type Config struct {
	// caching is opt-in; when false every call recomputes
	CacheEnabled bool
	// 0 keeps entries until ClearCache
	CacheTTL time.Duration
	// share one computation between concurrent identical misses
	CoalesceInFlight bool
	// bound for the in-process store; 0 is unbounded
	CacheMaxEntries int

	MaxRecommendations     int
	MinConfidenceThreshold float64

	HistoryLimit int
	PresetLimit  int

	Weights          Weights
	SampleSaturation float64
	RecencyHalfLife  time.Duration

	MinCombinationOccurrences int
	// when set, combinations are grouped on these input keys only
	CombinationKeys []string
	MaterialKeys    []string

	MinWorkflowOccurrences int
	WorkflowWindow         time.Duration

	TypeWeights map[domain.RecommendationType]float64
}

const (
	DefaultMinConfidence = 0.1

	defaultMaxRecommendations        = 10
	defaultCacheMaxEntries           = 1000
	defaultHistoryLimit              = 500
	defaultPresetLimit               = 100
	defaultSampleSaturation          = 5.0
	defaultRecencyHalfLife           = 30 * 24 * time.Hour
	defaultMinCombinationOccurrences = 2
	defaultMinWorkflowOccurrences    = 2
	defaultWorkflowWindow            = 30 * time.Minute

	defaultWeightSample      = 0.30
	defaultWeightSuccess     = 0.25
	defaultWeightRecency     = 0.15
	defaultWeightConsistency = 0.15
	defaultWeightRelevance   = 0.15
)

func DefaultWeights() Weights {
	return Weights{
		Sample:      defaultWeightSample,
		Success:     defaultWeightSuccess,
		Recency:     defaultWeightRecency,
		Consistency: defaultWeightConsistency,
		Relevance:   defaultWeightRelevance,
	}
}

func DefaultConfig() Config {
	return Config{
		CacheEnabled:           false,
		CacheMaxEntries:        defaultCacheMaxEntries,
		MaxRecommendations:     defaultMaxRecommendations,
		MinConfidenceThreshold: DefaultMinConfidence,

		HistoryLimit: defaultHistoryLimit,
		PresetLimit:  defaultPresetLimit,

		Weights:          DefaultWeights(),
		SampleSaturation: defaultSampleSaturation,
		RecencyHalfLife:  defaultRecencyHalfLife,

		MinCombinationOccurrences: defaultMinCombinationOccurrences,
		MaterialKeys:              []string{"material", "materialType", "material_type"},

		MinWorkflowOccurrences: defaultMinWorkflowOccurrences,
		WorkflowWindow:         defaultWorkflowWindow,

		TypeWeights: map[domain.RecommendationType]float64{
			domain.RecommendationParameterValue:       1.0,
			domain.RecommendationParameterCombination: 1.2,
			domain.RecommendationMaterialSelection:    1.1,
			domain.RecommendationWorkflow:             0.9,
			domain.RecommendationPreset:               1.0,
		},
	}
}

// normalize fills zero values from DefaultConfig so partially built configs stay usable.
func (c Config) normalize() Config {
	def := DefaultConfig()

	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = def.MaxRecommendations
	}
	if c.MinConfidenceThreshold <= 0 || c.MinConfidenceThreshold > 1 {
		c.MinConfidenceThreshold = def.MinConfidenceThreshold
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.PresetLimit <= 0 {
		c.PresetLimit = def.PresetLimit
	}
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	if c.SampleSaturation <= 0 {
		c.SampleSaturation = def.SampleSaturation
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = def.RecencyHalfLife
	}
	if c.MinCombinationOccurrences <= 0 {
		c.MinCombinationOccurrences = def.MinCombinationOccurrences
	}
	if len(c.MaterialKeys) == 0 {
		c.MaterialKeys = def.MaterialKeys
	}
	if c.MinWorkflowOccurrences <= 0 {
		c.MinWorkflowOccurrences = def.MinWorkflowOccurrences
	}
	if c.WorkflowWindow <= 0 {
		c.WorkflowWindow = def.WorkflowWindow
	}
	if c.TypeWeights == nil {
		c.TypeWeights = def.TypeWeights
	}
	if c.CacheMaxEntries < 0 {
		c.CacheMaxEntries = 0
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}

	return c
}

func (c Config) typeWeight(t domain.RecommendationType) float64 {
	if w, ok := c.TypeWeights[t]; ok && w > 0 {
		return w
	}
	return 1.0
}
