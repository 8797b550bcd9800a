package tariff

import "github.com/shopspring/decimal"

// Cost converts consumption into a taxed monetary amount for a plan.
// consumptionKWh must be non-negative. Unknown plans use the default plan.
func (t Table) Cost(consumptionKWh float64, planID string, taxPercent float64) float64 {
	return t.Lookup(planID).Cost(consumptionKWh, taxPercent)
}

// Cost applies the two-tier price and the tax rate.
func (p Plan) Cost(consumptionKWh float64, taxPercent float64) float64 {
	threshold := p.Threshold()
	var cost float64
	if consumptionKWh <= threshold {
		cost = consumptionKWh * p.Tier1Price
	} else {
		cost = threshold*p.Tier1Price + (consumptionKWh-threshold)*p.Tier2Price
	}
	return cost * (1 + taxPercent/100)
}

// Calculator binds a table to the active plan and tax rate.
type Calculator struct {
	table      Table
	planID     string
	taxPercent float64
}

// NewCalculator constructs a calculator. A nil table uses DefaultTable.
func NewCalculator(table Table, planID string, taxPercent float64) Calculator {
	if table == nil {
		table = DefaultTable()
	}
	return Calculator{table: table, planID: planID, taxPercent: taxPercent}
}

// Cost prices a consumption with the bound settings.
func (c Calculator) Cost(consumptionKWh float64) float64 {
	return c.table.Cost(consumptionKWh, c.planID, c.taxPercent)
}

// Plan returns the resolved active plan.
func (c Calculator) Plan() Plan { return c.table.Lookup(c.planID) }

// RoundAmount rounds a monetary amount to whole currency units for display.
func RoundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(0).InexactFloat64()
}

// RoundEnergy rounds kWh to two decimals for display.
func RoundEnergy(kwh float64) float64 {
	return decimal.NewFromFloat(kwh).Round(2).InexactFloat64()
}
