package recommendation

import (
	"math"

	"calcReco/domain"
)

// Scorer turns supporting evidence into a bounded confidence.
type Scorer struct {
	weights    Weights
	saturation float64
}

func NewScorer(w Weights, saturation float64) Scorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	if saturation <= 0 {
		saturation = defaultSampleSaturation
	}
	return Scorer{weights: w, saturation: saturation}
}

var defaultScorer = NewScorer(DefaultWeights(), defaultSampleSaturation)

// CalculateConfidence scores evidence with the default weights.
func CalculateConfidence(sampleSize, successRate, recency, consistency, relevance float64) float64 {
	return defaultScorer.Confidence(sampleSize, successRate, recency, consistency, relevance)
}

// Confidence = wSample*n/(n+k) + wSuccess*s + wRecency*r + wConsistency*c + wRelevance*rel.
// Each signal is clamped to [0,1] first (NaN and negatives read as 0), and so is the result.
func (s Scorer) Confidence(sampleSize, successRate, recency, consistency, relevance float64) float64 {
	score := s.weights.Sample*s.sampleFactor(sampleSize) +
		s.weights.Success*clamp01(successRate) +
		s.weights.Recency*clamp01(recency) +
		s.weights.Consistency*clamp01(consistency) +
		s.weights.Relevance*clamp01(relevance)

	return clamp01(score)
}

func (s Scorer) Breakdown(sampleSize, successRate, recency, consistency, relevance float64) domain.ConfidenceBreakdown {
	return domain.ConfidenceBreakdown{
		SampleSize:  s.sampleFactor(sampleSize),
		SuccessRate: clamp01(successRate),
		Recency:     clamp01(recency),
		Consistency: clamp01(consistency),
		Relevance:   clamp01(relevance),
		Confidence:  s.Confidence(sampleSize, successRate, recency, consistency, relevance),
	}
}

// sampleFactor saturates: one observation stays small, large samples approach 1.
func (s Scorer) sampleFactor(n float64) float64 {
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if math.IsInf(n, 1) {
		return 1
	}
	return n / (n + s.saturation)
}

// relevanceScore ranks results; it grows with confidence and, logarithmically, with evidence.
func relevanceScore(confidence, sampleSize, typeWeight float64) float64 {
	if math.IsNaN(sampleSize) || sampleSize < 0 {
		sampleSize = 0
	}
	if math.IsInf(sampleSize, 1) {
		sampleSize = math.MaxFloat64
	}
	return confidence * (1 + math.Log1p(sampleSize)) * typeWeight
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}
