// Package store defines the expense storage port. Implementations live in
// the memory and sqlstore subpackages.
package store

import (
	"context"
	"errors"

	"expense-svc/internal/core"
)

// ErrNotFound is returned when no expense with the given id belongs to the owner.
// A record owned by somebody else is reported the same way.
var ErrNotFound = errors.New("expense not found")

// Ports for expense persistence. Every operation is scoped by owner.
type (
	ExpenseReader interface {
		// Query returns the owner's expenses, restricted to month when it is non-nil.
		Query(ctx context.Context, owner string, month *core.Month) ([]core.Expense, error)

		// Get returns the owner's expense with the given id or ErrNotFound.
		Get(ctx context.Context, owner string, id int64) (core.Expense, error)
	}

	ExpenseWriter interface {
		// Insert stores e and returns it with the assigned id.
		Insert(ctx context.Context, e core.Expense) (core.Expense, error)

		// Update replaces the mutable fields of the record identified by e.ID
		// and e.UserID. Returns ErrNotFound if no such record exists.
		Update(ctx context.Context, e core.Expense) (core.Expense, error)

		// Remove deletes the owner's expense. Returns ErrNotFound if it does not exist.
		Remove(ctx context.Context, owner string, id int64) error
	}

	// ExpenseStore is the full keyed collection used by the expense service.
	ExpenseStore interface {
		ExpenseReader
		ExpenseWriter
	}

	// Pinger is implemented by stores that can report their health.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
