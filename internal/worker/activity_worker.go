package worker

import (
	"context"
	"fmt"

	"expense-svc/internal/amqp"
	"expense-svc/internal/cache"
	applog "expense-svc/internal/log"
	"expense-svc/internal/sheets"
)

// ActivityWorker mirrors expense events into an activity log. Deliveries are
// at least once, so events already written are remembered by id and skipped.
type ActivityWorker struct {
	writer sheets.ActivityWriter
	seen   cache.Cache[bool]
	logger *applog.Logger
}

func NewActivityWorker(writer sheets.ActivityWriter, seen cache.Cache[bool], logger *applog.Logger) *ActivityWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ActivityWorker{
		writer: writer,
		seen:   seen,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent writes one event. It matches amqp.Handler; a returned error
// requeues the delivery.
func (w *ActivityWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	if _, dup := w.seen.Get(msg.EventID); dup {
		w.logger.DebugContext(ctx, "Skipping event already written",
			applog.FieldEventID, msg.EventID)
		return nil
	}

	ev := msg.Event()
	w.logger.InfoContext(ctx, "Processing expense event",
		applog.FieldEventID, msg.EventID,
		applog.FieldOperation, string(msg.Op),
		applog.FieldExpenseID, msg.Expense.ID,
		applog.FieldUserID, msg.UserID)

	err := w.writer.AppendActivity(ctx, sheets.Activity{
		EventID:    msg.EventID,
		Op:         ev.Op,
		OccurredAt: ev.OccurredAt,
		Expense:    ev.Expense,
	})
	if err != nil {
		return fmt.Errorf("append activity for event %s: %w", msg.EventID, err)
	}

	w.seen.Set(msg.EventID, true)
	return nil
}

// StartupCheck primes the duplicate filter with the events the log already
// holds. Logs that cannot list their events are skipped.
func (w *ActivityWorker) StartupCheck(ctx context.Context) error {
	lister, ok := w.writer.(sheets.EventIDLister)
	if !ok {
		return nil
	}

	ids, err := lister.EventIDs(ctx)
	if err != nil {
		return fmt.Errorf("list written events: %w", err)
	}
	for _, id := range ids {
		w.seen.Set(id, true)
	}

	w.logger.InfoContext(ctx, "Primed duplicate filter",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldCount, len(ids))
	return nil
}
