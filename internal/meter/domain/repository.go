package meter

import "context"

// State is everything the persistence collaborator stores.
type State struct {
	Readings  []Reading
	Recharges []Recharge
	Settings  Settings
}

// Store persists the full state.
type Store interface {
	// Load returns ok=false when nothing has been saved yet.
	Load(ctx context.Context) (state State, ok bool, err error)
	Save(ctx context.Context, state State) error
}
