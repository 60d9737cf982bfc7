package google

import (
	"time"

	"github.com/google/uuid"

	ports "expense-svc/internal/sheets"
)

// Column layout of the activity sheet:
// A occurred at, B event id, C op, D expense id, E date, F location,
// G amount, H category, I owner.
const (
	eventIDColumn = "B"
	lastColumn    = "I"
)

// activityRow renders an activity as sheet cells. Amounts are written as
// strings so no precision is lost to spreadsheet floats.
func activityRow(a ports.Activity) []any {
	e := a.Expense
	occurred := a.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return []any{
		occurred.UTC().Format(time.RFC3339),
		a.EventID,
		string(a.Op),
		e.ID,
		e.Date.String(),
		e.Location,
		e.Amount.String(),
		e.Category.String(),
		e.UserID,
	}
}

// looksLikeEventID skips the header row and anything else that is not an event id.
func looksLikeEventID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
