package recommendation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"calcReco/domain"
)

// Evidence holds the raw signals a candidate is scored on.
type Evidence struct {
	SampleSize  float64
	SuccessRate float64
	Recency     float64
	Consistency float64
	Relevance   float64
}

// candidate is a recommendation before scoring and filtering.
type candidate struct {
	rec      domain.Recommendation
	evidence Evidence
	basis    string
}

type generatorInput struct {
	history  []domain.HistoryRecord
	patterns []domain.Pattern
	presets  []domain.Preset
	prefs    *domain.Preferences
	req      domain.RecommendationRequest
	cfg      Config
	now      time.Time
}

type generator func(in generatorInput) []candidate

func generatorFor(t domain.RecommendationType) (generator, bool) {
	switch t {
	case domain.RecommendationParameterValue:
		return generateParameterValues, true
	case domain.RecommendationParameterCombination:
		return generateParameterCombinations, true
	case domain.RecommendationMaterialSelection:
		return generateMaterialSelections, true
	case domain.RecommendationWorkflow:
		return generateWorkflows, true
	case domain.RecommendationPreset:
		return generatePresets, true
	default:
		return nil, false
	}
}

// ---- parameter-value ----

func generateParameterValues(in generatorInput) []candidate {
	type paramKey struct{ calc, name string }

	stats := make(map[paramKey]map[string]*tally)
	for _, r := range in.history {
		ok := r.Succeeded()
		for name, v := range r.Inputs {
			pk := paramKey{r.CalculatorType, name}
			if stats[pk] == nil {
				stats[pk] = make(map[string]*tally)
			}
			key := canonicalValue(v)
			t, exists := stats[pk][key]
			if !exists {
				t = &tally{key: key, value: v}
				stats[pk][key] = t
			}
			t.observe(r.Timestamp, ok)
		}
	}

	keys := make([]paramKey, 0, len(stats))
	for pk := range stats {
		keys = append(keys, pk)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].calc != keys[j].calc {
			return keys[i].calc < keys[j].calc
		}
		return keys[i].name < keys[j].name
	})

	out := make([]candidate, 0, len(keys))
	for _, pk := range keys {
		top, total := best(stats[pk])
		if top == nil {
			continue
		}

		supported := hasPattern(in.patterns, domain.PatternParameterPreference, pk.calc, func(p domain.Pattern) bool {
			_, ok := p.Parameters[pk.name]
			return ok
		})

		out = append(out, candidate{
			rec: domain.Recommendation{
				Type:           domain.RecommendationParameterValue,
				Title:          fmt.Sprintf("Use %s = %s", pk.name, top.key),
				Description:    fmt.Sprintf("Most frequently used value for %q in %s.", pk.name, pk.calc),
				CalculatorType: pk.calc,
				Data: map[string]any{
					"parameter":      pk.name,
					"suggestedValue": top.value,
					"sampleSize":     top.count,
				},
				Actionable: true,
			},
			evidence: Evidence{
				SampleSize:  float64(top.count),
				SuccessRate: top.successRate(),
				Recency:     recency(in.now, top.latest, in.cfg.RecencyHalfLife),
				Consistency: ratio(top.count, total),
				Relevance:   relevanceSignal(in.req, pk.calc, supported),
			},
			basis: fmt.Sprintf("%s was set to %s in %d of %d calculations.", pk.name, top.key, top.count, total),
		})
	}

	return out
}

// ---- parameter-combination ----

func combinationTuple(inputs map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		tuple := make(map[string]any, len(inputs))
		for k, v := range inputs {
			tuple[k] = v
		}
		return tuple
	}
	tuple := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := inputs[k]; ok {
			tuple[k] = v
		}
	}
	return tuple
}

func generateParameterCombinations(in generatorInput) []candidate {
	type group struct {
		calc       string
		parameters map[string]any
		tally      *tally
		outputs    map[string]int
	}

	groups := make(map[string]*group)
	for _, r := range in.history {
		tuple := combinationTuple(r.Inputs, in.cfg.CombinationKeys)
		if len(tuple) == 0 {
			continue
		}
		key := r.CalculatorType + "|" + canonicalValue(tuple)
		g, ok := groups[key]
		if !ok {
			g = &group{
				calc:       r.CalculatorType,
				parameters: tuple,
				tally:      &tally{key: key},
				outputs:    make(map[string]int),
			}
			groups[key] = g
		}
		g.tally.observe(r.Timestamp, r.Succeeded())
		g.outputs[canonicalValue(map[string]any(r.Outputs))]++
	}

	out := make([]candidate, 0)
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if g.tally.count < in.cfg.MinCombinationOccurrences {
			continue
		}

		modal := 0
		for _, n := range g.outputs {
			if n > modal {
				modal = n
			}
		}

		rate := g.tally.successRate()
		supported := hasPattern(in.patterns, domain.PatternParameterPreference, g.calc, nil)

		out = append(out, candidate{
			rec: domain.Recommendation{
				Type:           domain.RecommendationParameterCombination,
				Title:          fmt.Sprintf("Reuse a proven %s setup", g.calc),
				Description:    fmt.Sprintf("This parameter set was used %d times with a %.0f%% success rate.", g.tally.count, rate*100),
				CalculatorType: g.calc,
				Data: map[string]any{
					"parameters":  g.parameters,
					"successRate": rate,
					"occurrences": g.tally.count,
				},
				Actionable: true,
			},
			evidence: Evidence{
				SampleSize:  float64(g.tally.count),
				SuccessRate: rate,
				Recency:     recency(in.now, g.tally.latest, in.cfg.RecencyHalfLife),
				Consistency: ratio(modal, g.tally.count),
				Relevance:   relevanceSignal(in.req, g.calc, supported),
			},
			basis: fmt.Sprintf("Same inputs seen %d times, %d succeeded.", g.tally.count, g.tally.successes),
		})
	}

	return out
}

// ---- material-selection ----

func materialOf(params map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func generateMaterialSelections(in generatorInput) []candidate {
	stats := make(map[string]map[string]*tally)
	observe := func(calc, material string, ts time.Time, ok bool) {
		if stats[calc] == nil {
			stats[calc] = make(map[string]*tally)
		}
		key := strings.ToLower(material)
		t, exists := stats[calc][key]
		if !exists {
			t = &tally{key: key, value: material}
			stats[calc][key] = t
		}
		t.observe(ts, ok)
	}

	for _, r := range in.history {
		if m, ok := materialOf(r.Inputs, in.cfg.MaterialKeys); ok {
			observe(r.CalculatorType, m, r.Timestamp, r.Succeeded())
		}
	}
	for _, p := range in.presets {
		if m, ok := materialOf(p.Parameters, in.cfg.MaterialKeys); ok {
			observe(p.CalculatorType, m, p.UpdatedAt, true)
		}
	}

	var preferred []string
	if in.prefs != nil {
		preferred = in.prefs.PreferredMaterials
	}

	out := make([]candidate, 0, len(stats))
	for _, calc := range sortedKeys(stats) {
		top, total := best(stats[calc])
		if top == nil {
			continue
		}
		material := fmt.Sprintf("%v", top.value)

		supported := containsFold(preferred, material) ||
			hasPattern(in.patterns, domain.PatternMaterialPreference, calc, func(p domain.Pattern) bool {
				m, ok := materialOf(p.Parameters, in.cfg.MaterialKeys)
				return ok && strings.EqualFold(m, material)
			})

		out = append(out, candidate{
			rec: domain.Recommendation{
				Type:           domain.RecommendationMaterialSelection,
				Title:          fmt.Sprintf("Choose %s", material),
				Description:    fmt.Sprintf("%s is your most used material for %s.", material, calc),
				CalculatorType: calc,
				Data: map[string]any{
					"material":    material,
					"sampleSize":  top.count,
					"successRate": top.successRate(),
				},
				Actionable: true,
			},
			evidence: Evidence{
				SampleSize:  float64(top.count),
				SuccessRate: top.successRate(),
				Recency:     recency(in.now, top.latest, in.cfg.RecencyHalfLife),
				Consistency: ratio(top.count, total),
				Relevance:   relevanceSignal(in.req, calc, supported),
			},
			basis: fmt.Sprintf("%s chosen %d of %d times.", material, top.count, total),
		})
	}

	return out
}

// ---- workflow ----

func generateWorkflows(in generatorInput) []candidate {
	ordered := make([]domain.HistoryRecord, len(in.history))
	copy(ordered, in.history)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	transitions := make(map[string]map[string]*tally)
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.CalculatorType == cur.CalculatorType {
			continue
		}
		if cur.Timestamp.Sub(prev.Timestamp) > in.cfg.WorkflowWindow {
			continue
		}
		if transitions[prev.CalculatorType] == nil {
			transitions[prev.CalculatorType] = make(map[string]*tally)
		}
		t, ok := transitions[prev.CalculatorType][cur.CalculatorType]
		if !ok {
			t = &tally{key: cur.CalculatorType, value: cur.CalculatorType}
			transitions[prev.CalculatorType][cur.CalculatorType] = t
		}
		t.observe(cur.Timestamp, cur.Succeeded())
	}

	out := make([]candidate, 0, len(transitions))
	for _, from := range sortedKeys(transitions) {
		top, total := best(transitions[from])
		if top == nil || top.count < in.cfg.MinWorkflowOccurrences {
			continue
		}
		to := top.key

		supported := hasPattern(in.patterns, domain.PatternCalculatorSequence, from, func(p domain.Pattern) bool {
			return fmt.Sprintf("%v", p.Parameters["to"]) == to
		})

		out = append(out, candidate{
			rec: domain.Recommendation{
				Type:           domain.RecommendationWorkflow,
				Title:          fmt.Sprintf("Continue with %s", to),
				Description:    fmt.Sprintf("After %s you usually open %s.", from, to),
				CalculatorType: from,
				Data: map[string]any{
					"fromCalculator": from,
					"toCalculator":   to,
					"occurrences":    top.count,
				},
				Actionable: true,
			},
			evidence: Evidence{
				SampleSize:  float64(top.count),
				SuccessRate: top.successRate(),
				Recency:     recency(in.now, top.latest, in.cfg.RecencyHalfLife),
				Consistency: ratio(top.count, total),
				Relevance:   relevanceSignal(in.req, from, supported),
			},
			basis: fmt.Sprintf("%s followed %s %d of %d times.", to, from, top.count, total),
		})
	}

	return out
}

// ---- preset ----

func presetMatches(preset domain.Preset, r domain.HistoryRecord) bool {
	if preset.CalculatorType != "" && preset.CalculatorType != r.CalculatorType {
		return false
	}
	if len(preset.Parameters) == 0 {
		return false
	}
	for k, v := range preset.Parameters {
		got, ok := r.Inputs[k]
		if !ok || canonicalValue(got) != canonicalValue(v) {
			return false
		}
	}
	return true
}

func generatePresets(in generatorInput) []candidate {
	presets := make([]domain.Preset, 0, len(in.presets))
	usageByCalc := make(map[string]int)
	for _, p := range in.presets {
		if p.UsageCount < 1 && !p.IsFavorite {
			continue
		}
		if in.req.CalculatorType != "" && p.CalculatorType != in.req.CalculatorType {
			continue
		}
		presets = append(presets, p)
		usageByCalc[p.CalculatorType] += max(p.UsageCount, 0)
	}
	sort.SliceStable(presets, func(i, j int) bool {
		if presets[i].UsageCount != presets[j].UsageCount {
			return presets[i].UsageCount > presets[j].UsageCount
		}
		if !presets[i].UpdatedAt.Equal(presets[j].UpdatedAt) {
			return presets[i].UpdatedAt.After(presets[j].UpdatedAt)
		}
		return presets[i].ID < presets[j].ID
	})

	out := make([]candidate, 0, len(presets))
	for _, p := range presets {
		t := &tally{key: p.ID, latest: p.UpdatedAt}
		for _, r := range in.history {
			if presetMatches(p, r) {
				t.observe(r.Timestamp, r.Succeeded())
			}
		}

		rate := 1.0
		if t.count > 0 {
			rate = t.successRate()
		}

		usage := max(p.UsageCount, 0)
		consistency := ratio(usage, usageByCalc[p.CalculatorType])
		if p.IsFavorite && consistency < 0.5 {
			consistency = 0.5
		}

		params := make(map[string]any, len(p.Parameters))
		for k, v := range p.Parameters {
			params[k] = v
		}

		out = append(out, candidate{
			rec: domain.Recommendation{
				Type:           domain.RecommendationPreset,
				Title:          fmt.Sprintf("Apply preset %q", p.Name),
				Description:    fmt.Sprintf("Saved preset for %s used %d times.", p.CalculatorType, usage),
				CalculatorType: p.CalculatorType,
				Data: map[string]any{
					"presetId":   p.ID,
					"presetName": p.Name,
					"parameters": params,
					"usageCount": usage,
				},
				Actionable: len(params) > 0,
			},
			evidence: Evidence{
				SampleSize:  float64(usage + t.count),
				SuccessRate: rate,
				Recency:     recency(in.now, t.latest, in.cfg.RecencyHalfLife),
				Consistency: consistency,
				Relevance:   relevanceSignal(in.req, p.CalculatorType, p.IsFavorite),
			},
			basis: fmt.Sprintf("Preset used %d times and matched %d calculations.", usage, t.count),
		})
	}

	return out
}
