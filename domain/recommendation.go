package domain

import (
	"errors"
	"time"
)

var ErrUnknownRecommendationType = errors.New("unknown recommendation type")

type RecommendationType string

const (
	RecommendationParameterValue       RecommendationType = "parameter-value"
	RecommendationParameterCombination RecommendationType = "parameter-combination"
	RecommendationMaterialSelection    RecommendationType = "material-selection"
	RecommendationWorkflow             RecommendationType = "workflow"
	RecommendationPreset               RecommendationType = "preset"
)

// AllRecommendationTypes lists every type in generator dispatch order.
var AllRecommendationTypes = []RecommendationType{
	RecommendationParameterValue,
	RecommendationParameterCombination,
	RecommendationMaterialSelection,
	RecommendationWorkflow,
	RecommendationPreset,
}

func ParseRecommendationType(s string) (RecommendationType, error) {
	for _, t := range AllRecommendationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnknownRecommendationType
}

type Recommendation struct {
	ID             string             `json:"id"`
	Type           RecommendationType `json:"type"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Explanation    string             `json:"explanation"`
	CalculatorType string             `json:"calculator_type,omitempty"`
	Confidence     float64            `json:"confidence"`
	RelevanceScore float64            `json:"relevance_score"`
	Data           map[string]any     `json:"data"`
	Actionable     bool               `json:"actionable"`
	Timestamp      time.Time          `json:"timestamp"`
}

// RecommendationRequest is built per call and never persisted.
// An empty Types slice asks for every type.
type RecommendationRequest struct {
	UserID         string               `json:"user_id"`
	CalculatorType string               `json:"calculator_type"`
	Types          []RecommendationType `json:"types"`
	MinConfidence  *float64             `json:"min_confidence,omitempty"`
}

type CacheStats struct {
	Size   int      `json:"size"`
	Keys   []string `json:"keys"`
	Hits   int64    `json:"hits"`
	Misses int64    `json:"misses"`
}

type ConfidenceBreakdown struct {
	SampleSize  float64 `json:"sample_size"`
	SuccessRate float64 `json:"success_rate"`
	Recency     float64 `json:"recency"`
	Consistency float64 `json:"consistency"`
	Relevance   float64 `json:"relevance"`
	Confidence  float64 `json:"confidence"`
}
