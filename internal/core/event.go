package core

import (
	"fmt"
	"time"
)

// EventOp names the mutation an ExpenseEvent records.
type EventOp string

const (
	EventCreated  EventOp = "created"
	EventModified EventOp = "modified"
	EventDeleted  EventOp = "deleted"
)

func (op EventOp) IsValid() bool {
	switch op {
	case EventCreated, EventModified, EventDeleted:
		return true
	}
	return false
}

func ParseEventOp(s string) (EventOp, error) {
	op := EventOp(s)
	if !op.IsValid() {
		return "", fmt.Errorf("unknown event op %q", s)
	}
	return op, nil
}

// ExpenseEvent records a successful mutation. For deletions Expense holds
// the record as it was before removal.
type ExpenseEvent struct {
	Op         EventOp
	Expense    Expense
	OccurredAt time.Time
}

func NewExpenseEvent(op EventOp, e Expense) ExpenseEvent {
	return ExpenseEvent{Op: op, Expense: e, OccurredAt: time.Now().UTC()}
}
