package domain

import "time"

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "idle"
	CheckoutCollecting CheckoutState = "collecting"
	CheckoutConfirming CheckoutState = "confirming"
)

const (
	StrategyDeterministic = "deterministic"
	StrategyDelegated     = "delegated"
)

// Draft is the per-session checkout state. It is owned by exactly one
// session and replaced wholesale on every turn.
type Draft struct {
	SessionID string        `json:"session_id"`
	ID        string        `json:"id,omitempty"`
	State     CheckoutState `json:"state"`
	Step      int           `json:"step"`
	Products  []ProductRef  `json:"products,omitempty"`
	Customer  CustomerInfo  `json:"customer"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewDraft(sessionID string) Draft {
	return Draft{SessionID: sessionID, State: CheckoutIdle}
}

// Active reports whether a checkout is in progress.
func (d Draft) Active() bool {
	return d.State == CheckoutCollecting || d.State == CheckoutConfirming
}
