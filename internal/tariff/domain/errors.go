package tariff

import "errors"

var (
	// ErrEmptyPlanID is returned when a plan has no identifier.
	ErrEmptyPlanID = errors.New("tariff: empty plan id")
	// ErrNegativePrice is returned when a tier price is negative.
	ErrNegativePrice = errors.New("tariff: negative price")
	// ErrUnknownPlan is returned when a plan id is not in the table.
	ErrUnknownPlan = errors.New("tariff: unknown plan")
	// ErrNegativeTax is returned when a tax rate is negative or not finite.
	ErrNegativeTax = errors.New("tariff: invalid tax rate")
)
