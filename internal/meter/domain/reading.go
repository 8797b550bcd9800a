package meter

import (
	"math"
	"sort"
	"time"
)

// CostFunc prices a non-negative consumption.
type CostFunc func(consumptionKWh float64) float64

// Reading is one cumulative meter observation.
type Reading struct {
	ID          string
	Date        time.Time
	RawValue    float64
	Consumption float64
	Cost        float64
}

// ReadingLedger keeps readings sorted ascending by date.
type ReadingLedger struct {
	entries []Reading
}

// NewReadingLedger builds a ledger from entries as given; call Recompute to derive fields.
func NewReadingLedger(entries []Reading) *ReadingLedger {
	l := &ReadingLedger{entries: append([]Reading(nil), entries...)}
	l.sort()
	return l
}

// Len returns the number of readings.
func (l *ReadingLedger) Len() int { return len(l.entries) }

// Entries returns a copy of the readings in date order.
func (l *ReadingLedger) Entries() []Reading {
	return append([]Reading(nil), l.entries...)
}

// Clone returns a detached copy.
func (l *ReadingLedger) Clone() *ReadingLedger {
	return &ReadingLedger{entries: l.Entries()}
}

// Last returns the reading with the latest date.
func (l *ReadingLedger) Last() (Reading, bool) {
	if len(l.entries) == 0 {
		return Reading{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Find returns the reading with id.
func (l *ReadingLedger) Find(id string) (Reading, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.entries[i], true
	}
	return Reading{}, false
}

// Add validates and inserts a reading. delta is the consumption against the
// latest reading before insertion and is what the credit balance is debited by.
func (l *ReadingLedger) Add(id string, date time.Time, rawValue float64, cost CostFunc) (entry Reading, delta float64, err error) {
	if id == "" {
		return Reading{}, 0, invalid("id", "required")
	}
	if date.IsZero() {
		return Reading{}, 0, invalid("date", "required")
	}
	if math.IsNaN(rawValue) || math.IsInf(rawValue, 0) || rawValue <= 0 {
		return Reading{}, 0, invalid("reading", "must be a positive number")
	}
	if last, ok := l.Last(); ok {
		if rawValue < last.RawValue {
			return Reading{}, 0, invalid("reading", "value must exceed the last recorded value")
		}
		delta = rawValue - last.RawValue
	}

	l.entries = append(l.entries, Reading{ID: id, Date: Day(date), RawValue: rawValue})
	l.Recompute(cost)

	entry, _ = l.Find(id)
	return entry, delta, nil
}

// Delete removes the reading with id and recomputes the remaining entries.
// The removed entry is returned with the consumption it had before removal.
func (l *ReadingLedger) Delete(id string, cost CostFunc) (Reading, error) {
	i := l.indexOf(id)
	if i < 0 {
		return Reading{}, ErrNotFound
	}
	removed := l.entries[i]
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	l.Recompute(cost)
	return removed, nil
}

// Recompute re-sorts by date and derives consumption and cost for every entry.
// Costs always reflect the current tariff, not the one in effect at entry time.
func (l *ReadingLedger) Recompute(cost CostFunc) {
	l.sort()
	for i := range l.entries {
		consumption := 0.0
		if i > 0 {
			consumption = math.Max(0, l.entries[i].RawValue-l.entries[i-1].RawValue)
		}
		l.entries[i].Consumption = consumption
		if cost != nil {
			l.entries[i].Cost = cost(consumption)
		} else {
			l.entries[i].Cost = 0
		}
	}
}

// Validate checks that every entry has a date and a positive finite value.
func (l *ReadingLedger) Validate() error {
	for _, r := range l.entries {
		if r.Date.IsZero() {
			return invalid("date", "required")
		}
		if math.IsNaN(r.RawValue) || math.IsInf(r.RawValue, 0) || r.RawValue <= 0 {
			return invalid("reading", "must be a positive number")
		}
	}
	return nil
}

func (l *ReadingLedger) sort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].Date.Before(l.entries[j].Date)
	})
}

func (l *ReadingLedger) indexOf(id string) int {
	for i := range l.entries {
		if l.entries[i].ID == id {
			return i
		}
	}
	return -1
}
