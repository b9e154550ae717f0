package recommend

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"compactpdf/internal/domain/compression"
)

const (
	combinationFactor = 0.8
	maxEstimate       = 80.0
)

// Engine produces recommendations from a fixed catalog.
type Engine struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewEngine creates a new engine. A nil catalog selects DefaultCatalog.
func NewEngine(catalog Catalog, logger *slog.Logger) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: catalog, logger: logger}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Recommend buckets applicable techniques and assembles the three plans.
func (e *Engine) Recommend(profile compression.DocumentProfile) compression.Recommendations {
	var recs compression.Recommendations

	applicable := e.applicable(profile)
	for _, t := range Order(applicable) {
		switch {
		case t.Priority >= compression.PriorityHigh:
			recs.High = append(recs.High, t)
		case t.Priority == compression.PriorityMedium:
			recs.Medium = append(recs.Medium, t)
		default:
			recs.Low = append(recs.Low, t)
		}
	}

	var safe []compression.TechniqueRecommendation
	for _, t := range applicable {
		if t.QualityImpact <= compression.ImpactMinimal {
			safe = append(safe, t)
		}
	}

	balanced := append([]compression.TechniqueRecommendation(nil), safe...)
	for _, t := range Order(applicable) {
		if t.Priority == compression.PriorityMedium && !containsTechnique(balanced, t.Name) {
			balanced = append(balanced, t)
			break
		}
	}

	var warnings []string
	var w []string
	recs.Conservative, w = e.buildPlan("conservative", safe, applicable)
	warnings = append(warnings, w...)
	recs.Balanced, w = e.buildPlan("balanced", balanced, applicable)
	warnings = append(warnings, w...)
	recs.Aggressive, w = e.buildPlan("aggressive", applicable, applicable)
	warnings = append(warnings, w...)

	recs.RecommendedOrder = recs.Aggressive.Techniques
	recs.EstimatedTotalReduction = recs.Aggressive.EstimatedReduction
	recs.Warnings = dedupe(warnings)

	e.logger.Debug("Recommendations built",
		"file", profile.Path,
		"applicable", len(applicable),
		"conservative", recs.Conservative.Techniques,
		"balanced", recs.Balanced.Techniques,
		"aggressive", recs.Aggressive.Techniques)
	return recs
}

// Resolve builds a plan from caller-chosen technique names.
func (e *Engine) Resolve(profile compression.DocumentProfile, names []string) (compression.CompressionPlan, []string) {
	var warnings []string
	var chosen []compression.TechniqueRecommendation
	for _, n := range names {
		t, ok := e.catalog.Lookup(n)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown technique %q ignored", n))
			continue
		}
		if !t.IsApplicable(profile) {
			warnings = append(warnings, fmt.Sprintf("technique %q has nothing to act on in this document", n))
		}
		if !containsTechnique(chosen, t.Name) {
			chosen = append(chosen, t)
		}
	}

	all := make([]compression.TechniqueRecommendation, len(e.catalog))
	copy(all, e.catalog)

	plan, w := e.buildPlan("override", chosen, all)
	return plan, append(warnings, w...)
}

func (e *Engine) applicable(profile compression.DocumentProfile) []compression.TechniqueRecommendation {
	var out []compression.TechniqueRecommendation
	for _, t := range e.catalog {
		if t.IsApplicable(profile) {
			out = append(out, t)
		}
	}
	return out
}

// buildPlan pulls in prerequisites from pool, orders, and drops conflicting techniques.
func (e *Engine) buildPlan(name string, chosen, pool []compression.TechniqueRecommendation) (compression.CompressionPlan, []string) {
	var warnings []string

	set := append([]compression.TechniqueRecommendation(nil), chosen...)
	for i := 0; i < len(set); i++ {
		for _, dep := range set[i].DependsOn {
			if containsTechnique(set, dep) {
				continue
			}
			if t, ok := lookup(pool, dep); ok {
				set = append(set, t)
			}
		}
	}

	var kept []compression.TechniqueRecommendation
	for _, t := range Order(set) {
		if missing := missingDependency(t, kept, e.catalog); missing != "" {
			warnings = append(warnings, fmt.Sprintf("%s dropped: prerequisite %s unavailable", t.Name, missing))
			continue
		}
		if c, ok := firstConflict(t, kept); ok {
			warnings = append(warnings, fmt.Sprintf("%s dropped: conflicts with %s", t.Name, c))
			continue
		}
		kept = append(kept, t)
	}

	plan := compression.CompressionPlan{
		Name:               name,
		Techniques:         make([]string, 0, len(kept)),
		EstimatedReduction: EstimateReduction(kept),
		Risk:               risk(kept),
	}
	for _, t := range kept {
		plan.Techniques = append(plan.Techniques, t.Name)
	}
	return plan, warnings
}

// Order sorts by priority then expected reduction, emitting techniques whose
// in-set prerequisites are already placed first and the rest afterwards.
func Order(techs []compression.TechniqueRecommendation) []compression.TechniqueRecommendation {
	sorted := append([]compression.TechniqueRecommendation(nil), techs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		if sorted[i].ExpectedReduction != sorted[j].ExpectedReduction {
			return sorted[i].ExpectedReduction > sorted[j].ExpectedReduction
		}
		return sorted[i].Name < sorted[j].Name
	})

	emitted := map[string]bool{}
	out := make([]compression.TechniqueRecommendation, 0, len(sorted))
	for progress := true; progress; {
		progress = false
		for _, t := range sorted {
			if emitted[t.Name] || !ready(t, sorted, emitted) {
				continue
			}
			out = append(out, t)
			emitted[t.Name] = true
			progress = true
		}
	}
	for _, t := range sorted {
		if !emitted[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func ready(t compression.TechniqueRecommendation, set []compression.TechniqueRecommendation, emitted map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if containsTechnique(set, dep) && !emitted[dep] {
			return false
		}
	}
	return true
}

// EstimateReduction sums expected reductions, discounted when techniques are combined.
func EstimateReduction(techs []compression.TechniqueRecommendation) float64 {
	total := 0.0
	for _, t := range techs {
		total += t.ExpectedReduction
	}
	if len(techs) > 1 {
		total *= combinationFactor
	}
	return math.Min(total, maxEstimate)
}

func risk(techs []compression.TechniqueRecommendation) float64 {
	if len(techs) == 0 {
		return 0
	}
	sum := 0
	for _, t := range techs {
		sum += t.Risk()
	}
	return float64(sum) / float64(len(techs))
}

func missingDependency(t compression.TechniqueRecommendation, kept []compression.TechniqueRecommendation, catalog Catalog) string {
	for _, dep := range t.DependsOn {
		if _, known := catalog.Lookup(dep); !known {
			continue
		}
		if !containsTechnique(kept, dep) {
			return dep
		}
	}
	return ""
}

func firstConflict(t compression.TechniqueRecommendation, kept []compression.TechniqueRecommendation) (string, bool) {
	for _, k := range kept {
		if conflict(t, k) {
			return k.Name, true
		}
	}
	return "", false
}

func lookup(list []compression.TechniqueRecommendation, name string) (compression.TechniqueRecommendation, bool) {
	for _, t := range list {
		if t.Name == name {
			return t, true
		}
	}
	return compression.TechniqueRecommendation{}, false
}

func containsTechnique(list []compression.TechniqueRecommendation, name string) bool {
	_, ok := lookup(list, name)
	return ok
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
