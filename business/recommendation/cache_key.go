package recommendation

import (
	"encoding/json"
	"sort"

	"calcReco/domain"
)

// cacheKeyShape fixes the field order of the serialized key.
type cacheKeyShape struct {
	UserID         string   `json:"u"`
	CalculatorType string   `json:"c"`
	Types          []string `json:"t"`
	MinConfidence  *float64 `json:"m"`
}

// CacheKey derives a deterministic key from the full request shape.
// Type order and duplicates do not matter; the type set does.
func CacheKey(req domain.RecommendationRequest) string {
	resolved := resolveTypes(req.Types)
	types := make([]string, 0, len(resolved))
	for _, t := range resolved {
		types = append(types, string(t))
	}
	sort.Strings(types)

	// keyed on the threshold actually applied, so NaN and ±Inf stay encodable
	var minConf *float64
	if req.MinConfidence != nil {
		v := clamp01(*req.MinConfidence)
		minConf = &v
	}

	// strings and finite floats always marshal
	b, _ := json.Marshal(cacheKeyShape{
		UserID:         req.UserID,
		CalculatorType: req.CalculatorType,
		Types:          types,
		MinConfidence:  minConf,
	})
	return "reco:" + string(b)
}

// resolveTypes de-duplicates the requested types in request order and drops
// unknown ones. An empty request means every type; a request made only of
// unknown types resolves to none.
func resolveTypes(requested []domain.RecommendationType) []domain.RecommendationType {
	if len(requested) == 0 {
		out := make([]domain.RecommendationType, len(domain.AllRecommendationTypes))
		copy(out, domain.AllRecommendationTypes)
		return out
	}

	seen := make(map[domain.RecommendationType]bool, len(requested))
	out := make([]domain.RecommendationType, 0, len(requested))
	for _, t := range requested {
		if _, ok := generatorFor(t); !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
