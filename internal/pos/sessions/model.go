package sessions

import (
	"fmt"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/shared"
)

// State is the lifecycle state of a POS session.
type State string

const (
	StateOpeningControl State = "opening_control"
	StateOpened         State = "opened"
	StateClosingControl State = "closing_control"
	StateClosed         State = "closed"
)

var (
	// ErrNoActiveSession is returned when no session can serve orders.
	ErrNoActiveSession = fmt.Errorf("%w: no active POS session", shared.ErrNotFound)
	// ErrOpenOrders blocks closing while draft orders remain.
	ErrOpenOrders = fmt.Errorf("%w: session still has draft orders", shared.ErrConflict)
)

// Session is a POS cash-register session.
type Session struct {
	ID      int64        `json:"id"`
	Name    erp.Text     `json:"name"`
	State   State        `json:"state"`
	Config  erp.Many2One `json:"config_id"`
	User    erp.Many2One `json:"user_id"`
	StartAt erp.Time     `json:"start_at"`
	StopAt  erp.Time     `json:"stop_at"`
}

var sessionFields = []string{"name", "state", "config_id", "user_id", "start_at", "stop_at"}

// OpenResult describes how Open obtained the session.
type OpenResult struct {
	Session  *Session `json:"session"`
	Reused   bool     `json:"reused"`
	Strategy string   `json:"strategy,omitempty"`
}

// ForceCloseResult counts sessions closed by ForceClose.
type ForceCloseResult struct {
	Closed int      `json:"closed"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// TargetRequest optionally names the session to act on.
type TargetRequest struct {
	SessionID *int64 `json:"session_id" validate:"omitempty,gt=0"`
}
