package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"prepaid-meter/internal/analytics/domain/statistic"
	meter "prepaid-meter/internal/meter/domain"
	"prepaid-meter/internal/observability/metrics"
	tariff "prepaid-meter/internal/tariff/domain"
)

// DefaultSeriesLimit is the number of chart points returned by Series.
const DefaultSeriesLimit = 30

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Publisher receives LedgerChanged events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Option configures the service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newID = next
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the timezone used to derive "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithTariffTable sets the initial tariff table.
func WithTariffTable(table tariff.Table) Option {
	return func(s *Service) {
		if len(table) > 0 {
			s.state.table = table
		}
	}
}

// WithSeriesLimit overrides the chart series length.
func WithSeriesLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.seriesLimit = limit
		}
	}
}

type ledgerState struct {
	readings  *meter.ReadingLedger
	recharges *meter.RechargeLedger
	settings  meter.Settings
	table     tariff.Table
}

func (st ledgerState) clone() ledgerState {
	return ledgerState{
		readings:  st.readings.Clone(),
		recharges: st.recharges.Clone(),
		settings:  st.settings,
		table:     st.table,
	}
}

func (st ledgerState) cost() meter.CostFunc {
	return tariff.NewCalculator(st.table, st.settings.PlanID, st.settings.TaxPercent).Cost
}

func (st ledgerState) snapshot() meter.State {
	return meter.State{
		Readings:  st.readings.Entries(),
		Recharges: st.recharges.Entries(),
		Settings:  st.settings,
	}
}

// Service owns the reading ledger, the recharge ledger and the settings.
// One mutex guards all three; every mutation persists before it becomes visible.
type Service struct {
	mu    sync.Mutex
	state ledgerState

	store       meter.Store
	publisher   Publisher
	clock       Clock
	newID       func() string
	logger      *log.Logger
	location    *time.Location
	seriesLimit int
}

// NewService constructs the service with empty ledgers. Call Load to restore state.
func NewService(store meter.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("meter service: nil store")
	}
	s := &Service{
		state: ledgerState{
			readings:  meter.NewReadingLedger(nil),
			recharges: meter.NewRechargeLedger(nil),
			settings:  meter.DefaultSettings(tariff.DefaultPlanID),
			table:     tariff.DefaultTable(),
		},
		store:       store,
		clock:       SystemClock{},
		newID:       uuid.NewString,
		logger:      log.New(log.Writer(), "", log.LstdFlags),
		location:    time.UTC,
		seriesLimit: DefaultSeriesLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load restores state from the store and recomputes derived fields.
func (s *Service) Load(ctx context.Context) error {
	stored, ok, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", meter.ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.logger.Printf("meter service: no stored state, starting empty")
		return nil
	}
	s.state = s.normalize(stored, s.state.table)
	s.logger.Printf("meter service: loaded %d readings, %d recharges, credit=%.2f",
		s.state.readings.Len(), s.state.recharges.Len(), s.state.settings.Credit.Balance())
	return nil
}

// normalize builds ledgers from stored entries and recomputes every derived field.
func (s *Service) normalize(stored meter.State, table tariff.Table) ledgerState {
	settings := stored.Settings
	if !table.Has(settings.PlanID) {
		settings.PlanID = tariff.DefaultPlanID
	}
	if meter.ValidateTax(settings.TaxPercent) != nil {
		settings.TaxPercent = meter.DefaultTaxPercent
	}
	if _, err := meter.ParseTheme(string(settings.Theme)); err != nil {
		settings.Theme = meter.ThemeLight
	}
	settings.Credit = meter.NewCreditTracker(settings.Credit.Balance())

	seen := make(map[string]struct{}, len(stored.Readings)+len(stored.Recharges))
	readings := make([]meter.Reading, len(stored.Readings))
	for i, r := range stored.Readings {
		r.ID = s.uniqueID(r.ID, seen)
		readings[i] = r
	}
	recharges := make([]meter.Recharge, len(stored.Recharges))
	for i, r := range stored.Recharges {
		r.ID = s.uniqueID(r.ID, seen)
		recharges[i] = r
	}

	st := ledgerState{
		readings:  meter.NewReadingLedger(readings),
		recharges: meter.NewRechargeLedger(recharges),
		settings:  settings,
		table:     table,
	}
	st.readings.Recompute(st.cost())
	st.recharges.Recompute()
	return st
}

func (s *Service) uniqueID(id string, seen map[string]struct{}) string {
	if _, dup := seen[id]; id == "" || dup {
		id = s.newID()
	}
	seen[id] = struct{}{}
	return id
}

// apply runs fn against a copy of the state, persists the copy and swaps it in.
// A rejected or unpersisted mutation leaves the state untouched.
func (s *Service) apply(ctx context.Context, operation string, kind ChangeKind, op ChangeOp, fn func(next *ledgerState) (entryID string, err error)) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(operation, metrics.ResultOf(err, isRejection), time.Since(start))
	}()

	s.mu.Lock()
	next := s.state.clone()
	entryID, err := fn(&next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.store.Save(ctx, next.snapshot()); err != nil {
		s.mu.Unlock()
		metrics.IncPersistError()
		s.logger.Printf("meter service: %s save error: %v", operation, err)
		return fmt.Errorf("%w: %w", meter.ErrPersist, err)
	}
	previous := s.state.settings.Credit.Balance()
	s.state = next
	event := LedgerChanged{
		Kind:            kind,
		Op:              op,
		EntryID:         entryID,
		Balance:         next.settings.Credit.Balance(),
		PreviousBalance: previous,
		Readings:        next.readings.Len(),
		Recharges:       next.recharges.Len(),
		OccurredAt:      s.clock.Now().UTC(),
	}
	s.mu.Unlock()

	s.publish(ctx, event)
	return nil
}

func (s *Service) publish(ctx context.Context, event LedgerChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("meter service: publish %s %s error: %v", event.Kind, event.Op, err)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, meter.ErrValidation) ||
		errors.Is(err, meter.ErrNotFound) ||
		errors.Is(err, meter.ErrFormat) ||
		errors.Is(err, meter.ErrParse)
}

// AddReading records a cumulative meter value and debits the credit by the new consumption.
func (s *Service) AddReading(ctx context.Context, date string, rawValue float64) (meter.Reading, error) {
	var added meter.Reading
	err := s.apply(ctx, "add_reading", ChangeReading, OpAdded, func(next *ledgerState) (string, error) {
		day, err := meter.ParseDate(date)
		if err != nil {
			return "", err
		}
		entry, delta, err := next.readings.Add(s.newID(), day, rawValue, next.cost())
		if err != nil {
			return "", err
		}
		if delta > 0 {
			next.settings.Credit.Debit(delta)
		}
		added = entry
		return entry.ID, nil
	})
	return added, err
}

// DeleteReading removes a reading by id and restores the credit it consumed.
func (s *Service) DeleteReading(ctx context.Context, id string) error {
	return s.apply(ctx, "delete_reading", ChangeReading, OpDeleted, func(next *ledgerState) (string, error) {
		removed, err := next.readings.Delete(id, next.cost())
		if err != nil {
			return "", err
		}
		if removed.Consumption > 0 {
			next.settings.Credit.Credit(removed.Consumption)
		}
		return removed.ID, nil
	})
}

// AddRecharge records a top-up and credits its units.
func (s *Service) AddRecharge(ctx context.Context, date string, amount, units float64) (meter.Recharge, error) {
	var added meter.Recharge
	err := s.apply(ctx, "add_recharge", ChangeRecharge, OpAdded, func(next *ledgerState) (string, error) {
		day, err := meter.ParseDate(date)
		if err != nil {
			return "", err
		}
		entry, err := next.recharges.Add(s.newID(), day, amount, units)
		if err != nil {
			return "", err
		}
		next.settings.Credit.Credit(entry.Units)
		added = entry
		return entry.ID, nil
	})
	return added, err
}

// DeleteRecharge removes a recharge by id and debits its units, clamped at zero.
func (s *Service) DeleteRecharge(ctx context.Context, id string) error {
	return s.apply(ctx, "delete_recharge", ChangeRecharge, OpDeleted, func(next *ledgerState) (string, error) {
		removed, err := next.recharges.Delete(id)
		if err != nil {
			return "", err
		}
		next.settings.Credit.Debit(removed.Units)
		return removed.ID, nil
	})
}

// UpdateTariff switches the active plan and tax rate and recomputes every cost.
func (s *Service) UpdateTariff(ctx context.Context, planID string, taxPercent float64) error {
	return s.UpdateSettings(ctx, &planID, &taxPercent, nil)
}

// UpdateSettings changes any of plan, tax and theme in one mutation. Nil fields
// keep their current value; a rejected field leaves every setting unchanged.
func (s *Service) UpdateSettings(ctx context.Context, planID *string, taxPercent *float64, theme *string) error {
	return s.apply(ctx, "update_settings", ChangeSettings, OpUpdated, func(next *ledgerState) (string, error) {
		plan, tax := next.settings.PlanID, next.settings.TaxPercent
		if planID != nil {
			if _, err := next.table.Find(*planID); err != nil {
				return "", &meter.ValidationError{Field: "tariffPlan", Reason: "unknown plan " + *planID, Cause: err}
			}
			plan = *planID
		}
		if taxPercent != nil {
			if err := meter.ValidateTax(*taxPercent); err != nil {
				return "", err
			}
			tax = *taxPercent
		}
		if theme != nil {
			parsed, err := meter.ParseTheme(*theme)
			if err != nil {
				return "", err
			}
			next.settings.Theme = parsed
		}
		if plan != next.settings.PlanID || tax != next.settings.TaxPercent {
			next.settings.PlanID = plan
			next.settings.TaxPercent = tax
			next.readings.Recompute(next.cost())
		}
		return "", nil
	})
}

// UpdateTheme stores the display theme.
func (s *Service) UpdateTheme(ctx context.Context, theme string) error {
	return s.UpdateSettings(ctx, nil, nil, &theme)
}

// ReplaceTariffTable swaps the tariff table and recomputes every cost.
// An active plan missing from the new table falls back to the default plan.
func (s *Service) ReplaceTariffTable(ctx context.Context, table tariff.Table) error {
	return s.apply(ctx, "replace_tariff_table", ChangeTariff, OpReplaced, func(next *ledgerState) (string, error) {
		if len(table) == 0 {
			return "", &meter.ValidationError{Field: "tariffs", Reason: "empty table"}
		}
		for _, plan := range table {
			if err := plan.Validate(); err != nil {
				return "", &meter.ValidationError{Field: "tariffs", Reason: err.Error()}
			}
		}
		next.table = table
		if !table.Has(next.settings.PlanID) {
			next.settings.PlanID = tariff.DefaultPlanID
		}
		next.readings.Recompute(next.cost())
		return "", nil
	})
}

// Import replaces both ledgers and the settings with a snapshot document.
func (s *Service) Import(ctx context.Context, data []byte) error {
	return s.apply(ctx, "import", ChangeImport, OpReplaced, func(next *ledgerState) (string, error) {
		decoded, err := DecodeSnapshot(data)
		if err != nil {
			return "", err
		}
		if err := meter.NewReadingLedger(decoded.Readings).Validate(); err != nil {
			return "", fmt.Errorf("%w: %s: %v", meter.ErrFormat, keyReadings, err)
		}
		if err := meter.NewRechargeLedger(decoded.Recharges).Validate(); err != nil {
			return "", fmt.Errorf("%w: %s: %v", meter.ErrFormat, keyRecharges, err)
		}
		*next = s.normalize(decoded, next.table)
		return "", nil
	})
}

// Reset clears both ledgers and the credit; tariff settings and theme are kept.
func (s *Service) Reset(ctx context.Context) error {
	return s.apply(ctx, "reset", ChangeReset, OpReplaced, func(next *ledgerState) (string, error) {
		next.readings = meter.NewReadingLedger(nil)
		next.recharges = meter.NewRechargeLedger(nil)
		next.settings.Credit = meter.NewCreditTracker(0)
		return "", nil
	})
}

// Export renders the current state as a snapshot document.
func (s *Service) Export() ([]byte, error) {
	state := s.State()
	return EncodeSnapshot(state, s.clock.Now())
}

// State returns a copy of the current state.
func (s *Service) State() meter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

// Readings returns the readings in date order.
func (s *Service) Readings() []meter.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.readings.Entries()
}

// Recharges returns the recharges in date order.
func (s *Service) Recharges() []meter.Recharge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.recharges.Entries()
}

// Settings returns the current settings.
func (s *Service) Settings() meter.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.settings
}

// Tariffs returns the available plans.
func (s *Service) Tariffs() []tariff.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.table.Plans()
}

// ActivePlan returns the resolved active plan.
func (s *Service) ActivePlan() tariff.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.table.Lookup(s.state.settings.PlanID)
}

// CreditBalance implements metrics.StateSource.
func (s *Service) CreditBalance() float64 {
	return s.Settings().Credit.Balance()
}

// ReadingCount implements metrics.StateSource.
func (s *Service) ReadingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.readings.Len()
}

// RechargeCount implements metrics.StateSource.
func (s *Service) RechargeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.recharges.Len()
}

// Today returns the current calendar day in the configured timezone.
func (s *Service) Today() time.Time {
	return meter.Day(s.clock.Now().In(s.location))
}

// Analyze aggregates readings over window.
func (s *Service) Analyze(window statistic.Window) statistic.Aggregate {
	return statistic.Compute(s.Readings(), window, s.Today())
}

// Series returns chart points for the most recent readings.
// A non-positive limit uses the configured default.
func (s *Service) Series(limit int) []statistic.Point {
	if limit <= 0 {
		limit = s.seriesLimit
	}
	return statistic.Series(s.Readings(), limit)
}

// Dashboard is the current-month overview with credit status.
type Dashboard struct {
	Month                  statistic.MonthSummary `json:"month"`
	Credit                 float64                `json:"credit_kwh"`
	DaysRemaining          float64                `json:"days_remaining"`
	DaysRemainingAvailable bool                   `json:"days_remaining_available"`
	Plan                   tariff.Plan            `json:"plan"`
	TaxPercent             float64                `json:"tva"`
	Theme                  meter.Theme            `json:"theme"`
	LastReading            *meter.Reading         `json:"-"`
}

// Dashboard computes the current-month overview.
func (s *Service) Dashboard() Dashboard {
	s.mu.Lock()
	readings := s.state.readings.Entries()
	settings := s.state.settings
	plan := s.state.table.Lookup(settings.PlanID)
	last, hasLast := s.state.readings.Last()
	s.mu.Unlock()

	month := statistic.SummarizeMonth(readings, s.Today())
	days, ok := settings.Credit.DaysRemaining(month.AveragePerEntry)
	d := Dashboard{
		Month:                  month,
		Credit:                 settings.Credit.Balance(),
		DaysRemaining:          days,
		DaysRemainingAvailable: ok,
		Plan:                   plan,
		TaxPercent:             settings.TaxPercent,
		Theme:                  settings.Theme,
	}
	if hasLast {
		d.LastReading = &last
	}
	return d
}

// Now returns the service clock time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}
