package application

import "time"

// ChangeKind names what a mutation touched.
type ChangeKind string

const (
	ChangeReading  ChangeKind = "reading"
	ChangeRecharge ChangeKind = "recharge"
	ChangeSettings ChangeKind = "settings"
	ChangeTariff   ChangeKind = "tariff"
	ChangeImport   ChangeKind = "import"
	ChangeReset    ChangeKind = "reset"
)

// ChangeOp names the mutation.
type ChangeOp string

const (
	OpAdded    ChangeOp = "added"
	OpDeleted  ChangeOp = "deleted"
	OpUpdated  ChangeOp = "updated"
	OpReplaced ChangeOp = "replaced"
)

// LedgerChanged is published after every persisted mutation.
type LedgerChanged struct {
	Kind            ChangeKind `json:"kind"`
	Op              ChangeOp   `json:"op"`
	EntryID         string     `json:"entry_id,omitempty"`
	Balance         float64    `json:"balance_kwh"`
	PreviousBalance float64    `json:"previous_balance_kwh"`
	Readings        int        `json:"readings"`
	Recharges       int        `json:"recharges"`
	OccurredAt      time.Time  `json:"occurred_at"`
}
