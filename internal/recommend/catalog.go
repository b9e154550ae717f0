// Package recommend turns a DocumentProfile into ordered, conflict-free compression plans.
package recommend

import "compactpdf/internal/domain/compression"

// Catalog is the set of techniques the engine may recommend.
type Catalog []compression.TechniqueRecommendation

// DefaultCatalog returns the built-in technique catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:              compression.TechniqueImageCompression,
			Description:       "Re-encode raster images at the level's JPEG quality",
			Priority:          compression.PriorityHigh,
			ExpectedReduction: 25,
			QualityImpact:     compression.ImpactMinimal,
			RequiresImages:    true,
		},
		{
			Name:              compression.TechniqueImageDownsampling,
			Description:       "Cap image dimensions at the level's maximum",
			Priority:          compression.PriorityMedium,
			ExpectedReduction: 15,
			QualityImpact:     compression.ImpactModerate,
			RequiresImages:    true,
			DependsOn:         []string{compression.TechniqueImageCompression},
		},
		{
			Name:              compression.TechniqueStreamCompression,
			Description:       "Recompress content streams at the level's deflate strength",
			Priority:          compression.PriorityHigh,
			ExpectedReduction: 20,
			QualityImpact:     compression.ImpactNone,
		},
		{
			Name:              compression.TechniqueFontOptimization,
			Description:       "Drop font resources no content stream selects",
			Priority:          compression.PriorityMedium,
			ExpectedReduction: 10,
			QualityImpact:     compression.ImpactNone,
			RequiresFonts:     true,
		},
		{
			Name:              compression.TechniqueMetadataRemoval,
			Description:       "Strip non-essential document and page metadata",
			Priority:          compression.PriorityLow,
			ExpectedReduction: 2,
			QualityImpact:     compression.ImpactNone,
			RequiresMetadata:  true,
		},
	}
}

// Lookup finds a technique by name.
func (c Catalog) Lookup(name string) (compression.TechniqueRecommendation, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return compression.TechniqueRecommendation{}, false
}

// Names lists technique names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

func conflict(a, b compression.TechniqueRecommendation) bool {
	return a.ConflictsWithTechnique(b.Name) || b.ConflictsWithTechnique(a.Name)
}
