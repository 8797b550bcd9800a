package tariff

import (
	"math"
	"strings"
)

// Category groups plans that share a tier threshold.
type Category string

const (
	CategoryResidential  Category = "residential"
	CategoryProfessional Category = "professional"
)

const (
	residentialPrefix  = "domestique"
	professionalPrefix = "professionnel"

	// ResidentialThresholdKWh is the tier-1 ceiling for residential plans.
	ResidentialThresholdKWh = 150.0
	// ProfessionalThresholdKWh is the tier-1 ceiling for professional plans.
	ProfessionalThresholdKWh = 250.0
)

// CategoryOf derives the plan category from the plan id prefix.
func CategoryOf(planID string) Category {
	if strings.HasPrefix(strings.ToLower(planID), professionalPrefix) {
		return CategoryProfessional
	}
	return CategoryResidential
}

// Threshold returns the tier boundary in kWh.
func (c Category) Threshold() float64 {
	if c == CategoryProfessional {
		return ProfessionalThresholdKWh
	}
	return ResidentialThresholdKWh
}

// Plan is a two-tier price configuration.
type Plan struct {
	ID         string  `json:"id" yaml:"id" toml:"id"`
	Name       string  `json:"name" yaml:"name" toml:"name"`
	Tier1Price float64 `json:"tier1_price" yaml:"tier1_price" toml:"tier1_price"`
	Tier2Price float64 `json:"tier2_price" yaml:"tier2_price" toml:"tier2_price"`
}

// Category returns the plan category.
func (p Plan) Category() Category { return CategoryOf(p.ID) }

// Threshold returns the plan tier boundary in kWh.
func (p Plan) Threshold() float64 { return p.Category().Threshold() }

// Validate checks the plan fields.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyPlanID
	}
	if p.Tier1Price < 0 || p.Tier2Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// ValidateTax rejects negative or non-finite tax percentages.
func ValidateTax(taxPercent float64) error {
	if math.IsNaN(taxPercent) || math.IsInf(taxPercent, 0) || taxPercent < 0 {
		return ErrNegativeTax
	}
	return nil
}
