package recommendation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"calcReco/domain"
)

// recency halves every halfLife; future timestamps count as fresh.
func recency(now, t time.Time, halfLife time.Duration) float64 {
	if t.IsZero() || halfLife <= 0 {
		return 0
	}
	age := now.Sub(t)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}

// relevanceSignal: 0.6 base, +0.2 for a calculator match, +0.2 for pattern support.
func relevanceSignal(req domain.RecommendationRequest, calculatorType string, supported bool) float64 {
	r := 0.6
	if req.CalculatorType == "" || req.CalculatorType == calculatorType {
		r += 0.2
	}
	if supported {
		r += 0.2
	}
	return clamp01(r)
}

func hasPattern(patterns []domain.Pattern, patternType, calculatorType string, match func(domain.Pattern) bool) bool {
	for _, p := range patterns {
		if p.Type != patternType {
			continue
		}
		if p.CalculatorType != "" && p.CalculatorType != calculatorType {
			continue
		}
		if match == nil || match(p) {
			return true
		}
	}
	return false
}

// canonicalValue gives equal inputs equal keys regardless of their Go type
// (int 5, float64 5 and json.Number "5" all map to "5").
func canonicalValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// tally counts observations of one value; wins() implements the tie-break
// (frequency, then most recent occurrence, then smaller canonical value).
type tally struct {
	key       string
	value     any
	count     int
	successes int
	latest    time.Time
}

func (t *tally) observe(ts time.Time, ok bool) {
	t.count++
	if ok {
		t.successes++
	}
	if ts.After(t.latest) {
		t.latest = ts
	}
}

func (t *tally) wins(other *tally) bool {
	if other == nil {
		return true
	}
	if t.count != other.count {
		return t.count > other.count
	}
	if !t.latest.Equal(other.latest) {
		return t.latest.After(other.latest)
	}
	return t.key < other.key
}

func (t *tally) successRate() float64 {
	return ratio(t.successes, t.count)
}

// best picks the winning tally and the total observation count.
func best(tallies map[string]*tally) (*tally, int) {
	var top *tally
	total := 0
	for _, k := range sortedKeys(tallies) {
		t := tallies[k]
		total += t.count
		if t.wins(top) {
			top = t
		}
	}
	return top, total
}
