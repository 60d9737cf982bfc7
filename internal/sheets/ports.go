// Package sheets defines the activity log the worker mirrors expense events
// into. The Google Sheets implementation lives in the google subpackage.
package sheets

import (
	"context"
	"time"

	"expense-svc/internal/core"
)

// Activity is one line of the activity log.
type Activity struct {
	EventID    string
	Op         core.EventOp
	OccurredAt time.Time
	Expense    core.Expense
}

// Ports for the activity log.
type (
	ActivityWriter interface {
		// AppendActivity adds one line to the log.
		AppendActivity(ctx context.Context, a Activity) error
	}

	// EventIDLister is implemented by logs that can report which events they
	// already hold, so a restarted worker can skip redeliveries.
	EventIDLister interface {
		EventIDs(ctx context.Context) ([]string, error)
	}
)
