package meter

import tariff "prepaid-meter/internal/tariff/domain"

// Theme is the display theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(value string) (Theme, error) {
	switch Theme(value) {
	case ThemeLight, ThemeDark:
		return Theme(value), nil
	default:
		return "", invalid("theme", "expected light or dark")
	}
}

// DefaultTaxPercent is the VAT applied when none is configured.
const DefaultTaxPercent = 18.0

// Settings is the process-wide configuration.
type Settings struct {
	PlanID     string
	TaxPercent float64
	Credit     CreditTracker
	Theme      Theme
}

// DefaultSettings returns settings for a fresh install.
func DefaultSettings(planID string) Settings {
	return Settings{
		PlanID:     planID,
		TaxPercent: DefaultTaxPercent,
		Theme:      ThemeLight,
	}
}

// ValidateTax checks a tax percentage.
func ValidateTax(taxPercent float64) error {
	if err := tariff.ValidateTax(taxPercent); err != nil {
		return &ValidationError{Field: "tva", Reason: "must be zero or a positive number", Cause: err}
	}
	return nil
}
