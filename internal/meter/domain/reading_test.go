package meter

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func flatCost(kwh float64) float64 { return kwh * 10 }

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestReadingLedger_FirstReadingHasZeroConsumption(t *testing.T) {
	l := NewReadingLedger(nil)

	entry, delta, err := l.Add("r1", day(1), 100, flatCost)
	if err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if entry.Consumption != 0 || entry.Cost != 0 || delta != 0 {
		t.Fatalf("expected zero consumption, got %+v delta=%v", entry, delta)
	}

	entry, delta, err = l.Add("r2", day(2), 130, flatCost)
	if err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if entry.Consumption != 30 || delta != 30 {
		t.Fatalf("expected consumption 30, got %v delta=%v", entry.Consumption, delta)
	}
	if entry.Cost != 300 {
		t.Fatalf("expected cost 300, got %v", entry.Cost)
	}
}

func TestReadingLedger_AddRejectsInvalidInput(t *testing.T) {
	l := NewReadingLedger(nil)
	if _, _, err := l.Add("r1", day(5), 200, flatCost); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name  string
		date  time.Time
		value float64
	}{
		{name: "zero date", date: time.Time{}, value: 300},
		{name: "zero value", date: day(6), value: 0},
		{name: "negative value", date: day(6), value: -4},
		{name: "nan", date: day(6), value: math.NaN()},
		{name: "below last", date: day(6), value: 199.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := l.Add("bad", tc.date, tc.value, flatCost)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if l.Len() != 1 {
				t.Fatalf("ledger mutated on rejected add: len=%d", l.Len())
			}
		})
	}
}

func TestReadingLedger_EqualValueAllowed(t *testing.T) {
	l := NewReadingLedger(nil)
	_, _, _ = l.Add("r1", day(1), 50, flatCost)
	entry, delta, err := l.Add("r2", day(2), 50, flatCost)
	if err != nil {
		t.Fatalf("equal value should be accepted: %v", err)
	}
	if entry.Consumption != 0 || delta != 0 {
		t.Fatalf("expected zero consumption, got %v", entry.Consumption)
	}
}

func TestReadingLedger_DeleteRecomputesSuccessor(t *testing.T) {
	l := NewReadingLedger(nil)
	_, _, _ = l.Add("r1", day(1), 100, flatCost)
	_, _, _ = l.Add("r2", day(2), 130, flatCost)
	_, _, _ = l.Add("r3", day(3), 150, flatCost)

	removed, err := l.Delete("r2", flatCost)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.Consumption != 30 {
		t.Fatalf("expected removed consumption 30, got %v", removed.Consumption)
	}
	r3, ok := l.Find("r3")
	if !ok {
		t.Fatalf("r3 missing after delete")
	}
	if r3.Consumption != 50 || r3.Cost != 500 {
		t.Fatalf("expected r3 to span the gap, got %+v", r3)
	}

	if _, err := l.Delete("r2", flatCost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReadingLedger_RecomputeIdempotent(t *testing.T) {
	l := NewReadingLedger([]Reading{
		{ID: "c", Date: day(3), RawValue: 180},
		{ID: "a", Date: day(1), RawValue: 100},
		{ID: "b", Date: day(2), RawValue: 120},
	})
	l.Recompute(flatCost)
	once := l.Entries()
	l.Recompute(flatCost)
	twice := l.Entries()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("recompute not idempotent:\n%+v\n%+v", once, twice)
	}
	if once[0].ID != "a" || once[2].ID != "c" {
		t.Fatalf("expected date order, got %v %v %v", once[0].ID, once[1].ID, once[2].ID)
	}
}

func TestReadingLedger_RecomputeUsesCurrentTariff(t *testing.T) {
	l := NewReadingLedger(nil)
	_, _, _ = l.Add("r1", day(1), 100, flatCost)
	_, _, _ = l.Add("r2", day(2), 110, flatCost)

	l.Recompute(func(kwh float64) float64 { return kwh * 2 })

	r2, _ := l.Find("r2")
	if r2.Cost != 20 {
		t.Fatalf("expected cost to follow new tariff, got %v", r2.Cost)
	}
}

func TestReadingLedger_MonotonicDeltaInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewReadingLedger(nil)
	value := 10.0
	next := 0

	for step := 0; step < 500; step++ {
		if l.Len() > 0 && rng.Intn(4) == 0 {
			entries := l.Entries()
			victim := entries[rng.Intn(len(entries))]
			if _, err := l.Delete(victim.ID, flatCost); err != nil {
				t.Fatalf("delete: %v", err)
			}
		} else {
			value += float64(rng.Intn(20))
			next++
			if _, _, err := l.Add(fmt.Sprintf("r%d", next), day(1).AddDate(0, 0, next), value, flatCost); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		assertMonotonicDeltas(t, l.Entries())
	}
}

func assertMonotonicDeltas(t *testing.T, entries []Reading) {
	t.Helper()
	for i, entry := range entries {
		if i == 0 {
			if entry.Consumption != 0 {
				t.Fatalf("first entry consumption = %v", entry.Consumption)
			}
			continue
		}
		if entries[i-1].Date.After(entry.Date) {
			t.Fatalf("ledger not sorted at %d", i)
		}
		want := math.Max(0, entry.RawValue-entries[i-1].RawValue)
		if entry.Consumption != want {
			t.Fatalf("entry %d consumption=%v want=%v", i, entry.Consumption, want)
		}
		if entry.Cost != flatCost(want) {
			t.Fatalf("entry %d cost=%v want=%v", i, entry.Cost, flatCost(want))
		}
	}
}

func TestReadingLedger_Validate(t *testing.T) {
	if err := NewReadingLedger([]Reading{{ID: "a", Date: day(1), RawValue: 10}}).Validate(); err != nil {
		t.Fatalf("expected valid ledger, got %v", err)
	}
	cases := map[string]Reading{
		"zero value":     {ID: "a", Date: day(1), RawValue: 0},
		"negative value": {ID: "a", Date: day(1), RawValue: -3},
		"nan value":      {ID: "a", Date: day(1), RawValue: math.NaN()},
		"missing date":   {ID: "a", RawValue: 10},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			if err := NewReadingLedger([]Reading{r}).Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
