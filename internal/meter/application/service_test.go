package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"prepaid-meter/internal/analytics/domain/statistic"
	meter "prepaid-meter/internal/meter/domain"
	tariff "prepaid-meter/internal/tariff/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	state   meter.State
	saved   bool
	saves   int
	failErr error
}

func (s *fakeStore) Load(ctx context.Context) (meter.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.saved, nil
}

func (s *fakeStore) Save(ctx context.Context, state meter.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.state = state
	s.saved = true
	s.saves++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LedgerChanged
}

func (p *recordingPublisher) Publish(ctx context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(LedgerChanged))
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestService(t *testing.T, store *fakeStore, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(fixedClock{now: time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)}),
		WithIDGenerator(sequentialIDs()),
	}
	svc, err := NewService(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestServiceRechargeThenReadings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})

	recharge, err := svc.AddRecharge(ctx, "2024-01-01", 5000, 50)
	if err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if recharge.Rate != 100 {
		t.Fatalf("expected rate 100, got %v", recharge.Rate)
	}
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add first reading: %v", err)
	}
	second, err := svc.AddReading(ctx, "2024-01-02", 130)
	if err != nil {
		t.Fatalf("add second reading: %v", err)
	}

	if second.Consumption != 30 {
		t.Fatalf("expected consumption 30, got %v", second.Consumption)
	}
	if !almostEqual(second.Cost, 3227.418) {
		t.Fatalf("expected cost 3227.418, got %v", second.Cost)
	}
	if tariff.RoundAmount(second.Cost) != 3227 {
		t.Fatalf("expected rounded cost 3227, got %v", tariff.RoundAmount(second.Cost))
	}
	if got := svc.CreditBalance(); !almostEqual(got, 20) {
		t.Fatalf("expected balance 20, got %v", got)
	}
	if svc.ReadingCount() != 2 || svc.RechargeCount() != 1 {
		t.Fatalf("unexpected counts %d/%d", svc.ReadingCount(), svc.RechargeCount())
	}
}

func TestServiceDebitClampsAtZero(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2024-01-01", 1000, 10); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-02", 150); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if got := svc.CreditBalance(); got != 0 {
		t.Fatalf("expected clamped balance 0, got %v", got)
	}
}

func TestServiceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	svc := newTestService(t, store)
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}

	cases := []struct {
		name string
		call func() error
	}{
		{"missing date", func() error { _, err := svc.AddReading(ctx, "", 120); return err }},
		{"bad date", func() error { _, err := svc.AddReading(ctx, "01/02/2024", 120); return err }},
		{"zero reading", func() error { _, err := svc.AddReading(ctx, "2024-01-02", 0); return err }},
		{"decreasing reading", func() error { _, err := svc.AddReading(ctx, "2024-01-02", 90); return err }},
		{"zero amount", func() error { _, err := svc.AddRecharge(ctx, "2024-01-02", 0, 10); return err }},
		{"negative units", func() error { _, err := svc.AddRecharge(ctx, "2024-01-02", 100, -1); return err }},
		{"unknown plan", func() error { return svc.UpdateTariff(ctx, "industriel", 18) }},
		{"negative tax", func() error { return svc.UpdateTariff(ctx, tariff.DefaultPlanID, -1) }},
		{"bad theme", func() error { return svc.UpdateTheme(ctx, "blue") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, meter.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if err := svc.UpdateTariff(ctx, "industriel", 18); !errors.Is(err, tariff.ErrUnknownPlan) {
		t.Fatalf("expected unknown plan cause, got %v", err)
	}
	if err := svc.UpdateTariff(ctx, tariff.DefaultPlanID, -1); !errors.Is(err, tariff.ErrNegativeTax) {
		t.Fatalf("expected negative tax cause, got %v", err)
	}
	if svc.ReadingCount() != 1 || svc.RechargeCount() != 0 {
		t.Fatalf("rejected input changed state")
	}
	if store.saves != 1 {
		t.Fatalf("expected one save, got %d", store.saves)
	}
}

func TestServiceDeleteUnknownID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if err := svc.DeleteReading(ctx, "missing"); !errors.Is(err, meter.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteRecharge(ctx, "missing"); !errors.Is(err, meter.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceDeleteLatestReadingRestoresCredit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2024-01-01", 10000, 100); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	latest, err := svc.AddReading(ctx, "2024-01-02", 125)
	if err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if got := svc.CreditBalance(); !almostEqual(got, 75) {
		t.Fatalf("expected balance 75, got %v", got)
	}

	if err := svc.DeleteReading(ctx, latest.ID); err != nil {
		t.Fatalf("delete reading: %v", err)
	}
	if got := svc.CreditBalance(); !almostEqual(got, 100) {
		t.Fatalf("expected balance restored to 100, got %v", got)
	}
	if svc.ReadingCount() != 1 {
		t.Fatalf("expected 1 reading, got %d", svc.ReadingCount())
	}
}

func TestServiceDeleteRechargeDebitsUnits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	first, err := svc.AddRecharge(ctx, "2024-01-01", 1000, 10)
	if err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if _, err := svc.AddRecharge(ctx, "2024-01-03", 3000, 30); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if err := svc.DeleteRecharge(ctx, first.ID); err != nil {
		t.Fatalf("delete recharge: %v", err)
	}
	if got := svc.CreditBalance(); !almostEqual(got, 30) {
		t.Fatalf("expected balance 30, got %v", got)
	}
}

func TestServiceCreditMatchesReferenceAccumulator(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	rng := rand.New(rand.NewSource(7))

	const initial = 1e6
	if _, err := svc.AddRecharge(ctx, "2023-01-01", initial, initial); err != nil {
		t.Fatalf("add recharge: %v", err)
	}

	type added struct {
		id    string
		delta float64
	}
	var stack []added
	reference := initial
	raw := 1000.0
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		if len(stack) > 0 && rng.Intn(3) == 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if err := svc.DeleteReading(ctx, top.id); err != nil {
				t.Fatalf("step %d delete: %v", i, err)
			}
			reference += top.delta
			if last, ok := lastReading(svc); ok {
				raw = last.RawValue
			}
		} else {
			next := raw + float64(rng.Intn(40))
			entry, err := svc.AddReading(ctx, meter.FormatDate(day), next)
			if err != nil {
				t.Fatalf("step %d add: %v", i, err)
			}
			stack = append(stack, added{id: entry.ID, delta: entry.Consumption})
			reference -= entry.Consumption
			raw = next
			day = day.AddDate(0, 0, 1)
		}
		if got := svc.CreditBalance(); !almostEqual(got, reference) {
			t.Fatalf("step %d: balance %v, reference %v", i, got, reference)
		}
	}
}

func TestServiceCreditClampsAcrossMixedOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	rng := rand.New(rand.NewSource(11))

	if _, err := svc.AddRecharge(ctx, "2023-01-01", 2000, 20); err != nil {
		t.Fatalf("add recharge: %v", err)
	}

	type added struct {
		id    string
		delta float64
	}
	var readings []added
	var recharges []meter.Recharge
	reference := 20.0
	raw := 500.0
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	clamped := 0

	debit := func(units float64) {
		if units > reference {
			clamped++
		}
		reference = math.Max(0, reference-units)
	}

	for i := 0; i < 400; i++ {
		switch op := rng.Intn(4); {
		case op == 0:
			next := raw + float64(rng.Intn(15))
			entry, err := svc.AddReading(ctx, meter.FormatDate(day), next)
			if err != nil {
				t.Fatalf("step %d add reading: %v", i, err)
			}
			readings = append(readings, added{id: entry.ID, delta: entry.Consumption})
			debit(entry.Consumption)
			raw = next
			day = day.AddDate(0, 0, 1)
		case op == 1 && len(readings) > 0:
			top := readings[len(readings)-1]
			readings = readings[:len(readings)-1]
			if err := svc.DeleteReading(ctx, top.id); err != nil {
				t.Fatalf("step %d delete reading: %v", i, err)
			}
			reference += top.delta
			if last, ok := lastReading(svc); ok {
				raw = last.RawValue
			} else {
				raw = 500
			}
		case op == 2:
			units := float64(1 + rng.Intn(10))
			entry, err := svc.AddRecharge(ctx, meter.FormatDate(day), units*100, units)
			if err != nil {
				t.Fatalf("step %d add recharge: %v", i, err)
			}
			recharges = append(recharges, entry)
			reference += units
		case op == 3 && len(recharges) > 0:
			k := rng.Intn(len(recharges))
			removed := recharges[k]
			recharges = append(recharges[:k], recharges[k+1:]...)
			if err := svc.DeleteRecharge(ctx, removed.ID); err != nil {
				t.Fatalf("step %d delete recharge: %v", i, err)
			}
			debit(removed.Units)
		default:
			continue
		}

		got := svc.CreditBalance()
		if got < 0 {
			t.Fatalf("step %d: negative balance %v", i, got)
		}
		if !almostEqual(got, reference) {
			t.Fatalf("step %d: balance %v, reference %v", i, got, reference)
		}
	}
	if clamped == 0 {
		t.Fatalf("replay never reached the zero clamp")
	}
}

func TestServiceUpdateSettingsRejectsAtomically(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	publisher := &recordingPublisher{}
	svc := newTestService(t, store, WithPublisher(publisher))

	plan, tax, theme := "professionnel-pp", 10.0, "neon"
	if err := svc.UpdateSettings(ctx, &plan, &tax, &theme); !errors.Is(err, meter.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := svc.Settings(); got.PlanID != tariff.DefaultPlanID || got.TaxPercent != meter.DefaultTaxPercent {
		t.Fatalf("rejected update changed settings %+v", got)
	}
	if store.saves != 0 || len(publisher.events) != 0 {
		t.Fatalf("rejected update saved %d times and published %d events", store.saves, len(publisher.events))
	}

	theme = "dark"
	if err := svc.UpdateSettings(ctx, &plan, nil, &theme); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := svc.Settings()
	if got.PlanID != plan || got.TaxPercent != meter.DefaultTaxPercent || got.Theme != meter.ThemeDark {
		t.Fatalf("unexpected settings %+v", got)
	}
	if store.saves != 1 || len(publisher.events) != 1 {
		t.Fatalf("expected one save and one event, got %d and %d", store.saves, len(publisher.events))
	}
}

func lastReading(svc *Service) (meter.Reading, bool) {
	readings := svc.Readings()
	if len(readings) == 0 {
		return meter.Reading{}, false
	}
	return readings[len(readings)-1], true
}

func TestServicePersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	publisher := &recordingPublisher{}
	svc := newTestService(t, store, WithPublisher(publisher))

	if _, err := svc.AddRecharge(ctx, "2024-01-01", 1000, 10); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	store.failErr = errors.New("disk full")

	if _, err := svc.AddReading(ctx, "2024-01-02", 100); !errors.Is(err, meter.ErrPersist) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if err := svc.UpdateTheme(ctx, "dark"); !errors.Is(err, meter.ErrPersist) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if err := svc.Reset(ctx); !errors.Is(err, meter.ErrPersist) {
		t.Fatalf("expected persist error, got %v", err)
	}

	if svc.ReadingCount() != 0 || svc.RechargeCount() != 1 {
		t.Fatalf("state changed after failed save")
	}
	if svc.Settings().Theme != meter.ThemeLight {
		t.Fatalf("theme changed after failed save")
	}
	if got := svc.CreditBalance(); got != 10 {
		t.Fatalf("expected balance 10, got %v", got)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected only the successful mutation published, got %d", len(publisher.events))
	}
}

func TestServicePublishesLedgerChanged(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	svc := newTestService(t, &fakeStore{}, WithPublisher(publisher))

	recharge, err := svc.AddRecharge(ctx, "2024-01-01", 500, 5)
	if err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Kind != ChangeRecharge || event.Op != OpAdded || event.EntryID != recharge.ID {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.PreviousBalance != 0 || event.Balance != 5 || event.Recharges != 1 {
		t.Fatalf("unexpected balances %+v", event)
	}
}

func TestServiceUpdateTariffRecomputesCosts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-02", 400); err != nil {
		t.Fatalf("add reading: %v", err)
	}

	if err := svc.UpdateTariff(ctx, "professionnel-pp", 0); err != nil {
		t.Fatalf("update tariff: %v", err)
	}
	plan := svc.ActivePlan()
	if plan.ID != "professionnel-pp" {
		t.Fatalf("expected professionnel-pp, got %s", plan.ID)
	}
	readings := svc.Readings()
	want := 250*plan.Tier1Price + 50*plan.Tier2Price
	if !almostEqual(readings[1].Cost, want) {
		t.Fatalf("expected cost %v, got %v", want, readings[1].Cost)
	}
	if readings[0].Cost != 0 {
		t.Fatalf("expected zero cost for first reading, got %v", readings[0].Cost)
	}
}

func TestServiceReplaceTariffTableFallsBackToDefaultPlan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if err := svc.UpdateTariff(ctx, "domestique-mp", 18); err != nil {
		t.Fatalf("update tariff: %v", err)
	}
	table := tariff.Table{
		tariff.DefaultPlanID: {ID: tariff.DefaultPlanID, Name: "Domestique", Tier1Price: 100, Tier2Price: 150},
	}
	if err := svc.ReplaceTariffTable(ctx, table); err != nil {
		t.Fatalf("replace table: %v", err)
	}
	if got := svc.Settings().PlanID; got != tariff.DefaultPlanID {
		t.Fatalf("expected fallback to default plan, got %s", got)
	}
	if err := svc.ReplaceTariffTable(ctx, tariff.Table{}); !errors.Is(err, meter.ErrValidation) {
		t.Fatalf("expected validation error for empty table, got %v", err)
	}
}

func TestServiceReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2024-01-01", 1000, 10); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if err := svc.UpdateTariff(ctx, "domestique-mp", 10); err != nil {
		t.Fatalf("update tariff: %v", err)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if svc.ReadingCount() != 0 || svc.RechargeCount() != 0 || svc.CreditBalance() != 0 {
		t.Fatalf("reset left data behind")
	}
	settings := svc.Settings()
	if settings.PlanID != "domestique-mp" || settings.TaxPercent != 10 {
		t.Fatalf("reset changed tariff settings: %+v", settings)
	}
}

func TestServiceImportErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}

	cases := []struct {
		name string
		data string
		want error
	}{
		{"invalid json", `{"meterReadings": [`, meter.ErrParse},
		{"missing settings", `{"meterReadings": [], "recharges": []}`, meter.ErrFormat},
		{"null readings", `{"meterReadings": null, "recharges": [], "settings": {}}`, meter.ErrFormat},
		{"bad date", `{"meterReadings": [{"date": "yesterday", "reading": 1}], "recharges": [], "settings": {}}`, meter.ErrParse},
		{"zero units", `{"meterReadings": [], "recharges": [{"date": "2024-01-01", "amount": 10, "units": 0}], "settings": {}}`, meter.ErrFormat},
		{"zero reading", `{"meterReadings": [{"date": "2024-01-01", "reading": 0}], "recharges": [], "settings": {}}`, meter.ErrFormat},
		{"negative reading", `{"meterReadings": [{"date": "2024-01-01", "reading": -5}], "recharges": [], "settings": {}}`, meter.ErrFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Import(ctx, []byte(tc.data)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if svc.ReadingCount() != 1 {
		t.Fatalf("failed import changed state")
	}
}

func TestServiceImportReplacesState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2024-01-01", 1000, 10); err != nil {
		t.Fatalf("add recharge: %v", err)
	}

	data := `{
		"meterReadings": [
			{"id": "a", "date": "2024-01-03", "reading": 150, "consumption": 999, "cost": 1},
			{"id": "a", "date": "2024-01-01", "reading": 100}
		],
		"recharges": [{"date": "2024-01-01", "amount": 2000, "units": 40}],
		"settings": {"tariffPlan": "unknown", "tva": 18, "currentCredit": 12.5, "theme": "dark"},
		"exportDate": "2024-01-04T00:00:00Z"
	}`
	if err := svc.Import(ctx, []byte(data)); err != nil {
		t.Fatalf("import: %v", err)
	}

	readings := svc.Readings()
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].RawValue != 100 || readings[1].Consumption != 50 {
		t.Fatalf("expected recomputed consumption, got %+v", readings)
	}
	if readings[0].ID == readings[1].ID {
		t.Fatalf("expected duplicate id to be reassigned")
	}
	recharges := svc.Recharges()
	if len(recharges) != 1 || recharges[0].ID == "" || recharges[0].Rate != 50 {
		t.Fatalf("unexpected recharges %+v", recharges)
	}
	settings := svc.Settings()
	if settings.PlanID != tariff.DefaultPlanID || settings.Theme != meter.ThemeDark {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.Credit.Balance() != 12.5 {
		t.Fatalf("expected imported credit 12.5, got %v", settings.Credit.Balance())
	}
}

func TestServiceExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2024-01-01", 5000, 50); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-01", 100); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	if _, err := svc.AddReading(ctx, "2024-01-02", 130); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	data, err := svc.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	other := newTestService(t, &fakeStore{})
	if err := other.Import(ctx, data); err != nil {
		t.Fatalf("import: %v", err)
	}
	if other.CreditBalance() != svc.CreditBalance() {
		t.Fatalf("credit mismatch %v vs %v", other.CreditBalance(), svc.CreditBalance())
	}
	got, want := other.Readings(), svc.Readings()
	if len(got) != len(want) {
		t.Fatalf("reading count mismatch")
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].Date.Equal(want[i].Date) || got[i].Cost != want[i].Cost {
			t.Fatalf("reading %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestServiceLoadRestoresAndRecomputes(t *testing.T) {
	store := &fakeStore{saved: true, state: meter.State{
		Readings: []meter.Reading{
			{ID: "r2", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), RawValue: 130},
			{ID: "r1", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), RawValue: 100},
		},
		Settings: meter.Settings{PlanID: tariff.DefaultPlanID, TaxPercent: 18, Credit: meter.NewCreditTracker(20), Theme: meter.ThemeDark},
	}}
	svc := newTestService(t, store)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	readings := svc.Readings()
	if readings[0].ID != "r1" || readings[1].Consumption != 30 {
		t.Fatalf("unexpected readings %+v", readings)
	}
	if svc.CreditBalance() != 20 || svc.Settings().Theme != meter.ThemeDark {
		t.Fatalf("unexpected settings %+v", svc.Settings())
	}
}

func TestServiceDashboardAndAnalysis(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.AddRecharge(ctx, "2023-12-20", 10000, 100); err != nil {
		t.Fatalf("add recharge: %v", err)
	}
	for _, r := range []struct {
		date  string
		value float64
	}{
		{"2023-12-30", 100},
		{"2023-12-31", 120},
		{"2024-01-10", 130},
		{"2024-01-15", 150},
	} {
		if _, err := svc.AddReading(ctx, r.date, r.value); err != nil {
			t.Fatalf("add reading %s: %v", r.date, err)
		}
	}

	dashboard := svc.Dashboard()
	if dashboard.Month.Month != "2024-01" || dashboard.Month.Count != 2 {
		t.Fatalf("unexpected month summary %+v", dashboard.Month)
	}
	if dashboard.Month.TotalConsumption != 30 || dashboard.Month.AveragePerEntry != 15 {
		t.Fatalf("unexpected totals %+v", dashboard.Month)
	}
	if !almostEqual(dashboard.Credit, 50) {
		t.Fatalf("expected credit 50, got %v", dashboard.Credit)
	}
	if !dashboard.DaysRemainingAvailable || !almostEqual(dashboard.DaysRemaining, 50.0/15.0) {
		t.Fatalf("unexpected days remaining %+v", dashboard)
	}
	if dashboard.LastReading == nil || dashboard.LastReading.RawValue != 150 {
		t.Fatalf("unexpected last reading %+v", dashboard.LastReading)
	}

	week := svc.Analyze(statistic.WindowLast7Days)
	if week.Count != 1 || week.TotalConsumption != 20 {
		t.Fatalf("unexpected 7-day aggregate %+v", week)
	}
	all := svc.Analyze(statistic.WindowAll)
	if all.Count != 3 || all.PeakConsumption != 20 || all.MinConsumption != 10 {
		t.Fatalf("unexpected all-time aggregate %+v", all)
	}
	if len(svc.Series(0)) != 3 {
		t.Fatalf("expected 3 series points")
	}
	if points := svc.Series(2); len(points) != 2 || points[1].Date != "2024-01-15" {
		t.Fatalf("unexpected limited series %+v", points)
	}
}
