package memory

import (
	"context"
	"sync"

	meter "prepaid-meter/internal/meter/domain"
)

// Store keeps the last saved state in process memory. Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	state meter.State
	saved bool
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the last saved state; ok is false before the first save.
func (s *Store) Load(ctx context.Context) (meter.State, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return meter.State{}, false, nil
	}
	return clone(s.state), true, nil
}

// Save replaces the stored state.
func (s *Store) Save(ctx context.Context, state meter.State) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = clone(state)
	s.saved = true
	return nil
}

func clone(state meter.State) meter.State {
	return meter.State{
		Readings:  append([]meter.Reading(nil), state.Readings...),
		Recharges: append([]meter.Recharge(nil), state.Recharges...),
		Settings:  state.Settings,
	}
}
