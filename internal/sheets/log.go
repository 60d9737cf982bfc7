package sheets

import (
	"context"

	applog "expense-svc/internal/log"
)

// LogWriter records activity in the structured log. The worker falls back to
// it when no spreadsheet is configured.
type LogWriter struct {
	logger *applog.Logger
}

var _ ActivityWriter = (*LogWriter)(nil)

func NewLogWriter(logger *applog.Logger) *LogWriter {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LogWriter{logger: logger.WithComponent(applog.ComponentSheets)}
}

func (w *LogWriter) AppendActivity(ctx context.Context, a Activity) error {
	e := a.Expense
	fields := applog.NewFields().
		WithOperation(string(a.Op)).
		WithUser(e.UserID).
		WithExpense(e.ID, e.Amount.String(), e.Category.String())
	args := append(fields.ToSlice(),
		applog.FieldEventID, a.EventID,
		"date", e.Date.String(),
		"location", e.Location,
		"occurred_at", a.OccurredAt)
	w.logger.InfoContext(ctx, "Expense activity", args...)
	return nil
}
