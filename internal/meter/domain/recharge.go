package meter

import (
	"math"
	"sort"
	"time"
)

// Recharge is one credit top-up.
type Recharge struct {
	ID     string
	Date   time.Time
	Amount float64
	Units  float64
	Rate   float64
}

// RechargeLedger keeps recharges sorted ascending by date.
type RechargeLedger struct {
	entries []Recharge
}

// NewRechargeLedger builds a ledger from entries as given.
func NewRechargeLedger(entries []Recharge) *RechargeLedger {
	l := &RechargeLedger{entries: append([]Recharge(nil), entries...)}
	l.sort()
	return l
}

// Len returns the number of recharges.
func (l *RechargeLedger) Len() int { return len(l.entries) }

// Entries returns a copy of the recharges in date order.
func (l *RechargeLedger) Entries() []Recharge {
	return append([]Recharge(nil), l.entries...)
}

// Clone returns a detached copy.
func (l *RechargeLedger) Clone() *RechargeLedger {
	return &RechargeLedger{entries: l.Entries()}
}

// TotalUnits sums credited units.
func (l *RechargeLedger) TotalUnits() float64 {
	var total float64
	for _, r := range l.entries {
		total += r.Units
	}
	return total
}

// Add validates and inserts a recharge.
func (l *RechargeLedger) Add(id string, date time.Time, amount, units float64) (Recharge, error) {
	if id == "" {
		return Recharge{}, invalid("id", "required")
	}
	if date.IsZero() {
		return Recharge{}, invalid("date", "required")
	}
	if !positive(amount) {
		return Recharge{}, invalid("amount", "must be a positive number")
	}
	if !positive(units) {
		return Recharge{}, invalid("units", "must be a positive number")
	}
	entry := Recharge{ID: id, Date: Day(date), Amount: amount, Units: units, Rate: amount / units}
	l.entries = append(l.entries, entry)
	l.sort()
	return entry, nil
}

// Delete removes the recharge with id.
func (l *RechargeLedger) Delete(id string) (Recharge, error) {
	for i := range l.entries {
		if l.entries[i].ID == id {
			removed := l.entries[i]
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return removed, nil
		}
	}
	return Recharge{}, ErrNotFound
}

// Recompute re-sorts and derives the unit rate of every entry.
func (l *RechargeLedger) Recompute() {
	l.sort()
	for i := range l.entries {
		if l.entries[i].Units > 0 {
			l.entries[i].Rate = l.entries[i].Amount / l.entries[i].Units
		} else {
			l.entries[i].Rate = 0
		}
	}
}

// Validate checks that every entry satisfies the recharge invariants.
func (l *RechargeLedger) Validate() error {
	for _, r := range l.entries {
		if r.Date.IsZero() {
			return invalid("date", "required")
		}
		if !positive(r.Amount) {
			return invalid("amount", "must be a positive number")
		}
		if !positive(r.Units) {
			return invalid("units", "must be a positive number")
		}
	}
	return nil
}

func (l *RechargeLedger) sort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].Date.Before(l.entries[j].Date)
	})
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
