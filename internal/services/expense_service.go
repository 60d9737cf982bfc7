package services

import (
	"context"
	"errors"
	"fmt"

	"expense-svc/internal/core"
	applog "expense-svc/internal/log"
	"expense-svc/internal/store"
)

// Error classes returned by ExpenseService. Every error the service returns
// matches exactly one of them under errors.Is.
var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("expense not found")
	ErrStore      = errors.New("storage failure")
)

// EventPublisher announces successful mutations. Failures are logged and
// never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.ExpenseEvent) error
}

// ExpenseService runs the list, create, modify and delete operations for
// an authenticated owner.
type ExpenseService struct {
	store     store.ExpenseStore
	publisher EventPublisher
	logger    *applog.Logger
}

type Option func(*ExpenseService)

func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) { s.logger = l.WithComponent(applog.ComponentExpense) }
}

func NewExpenseService(st store.ExpenseStore, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:  st,
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the owner's expenses, narrowed to rawMonth when it is not blank.
// The result is never nil.
func (s *ExpenseService) List(ctx context.Context, owner, rawMonth string) ([]core.Expense, error) {
	month, err := core.ParseMonth(rawMonth)
	if err != nil {
		return nil, invalid(err)
	}

	items, err := s.store.Query(ctx, owner, month)
	if err != nil {
		return nil, s.storeFailure(ctx, applog.OpList, err)
	}
	if items == nil {
		items = []core.Expense{}
	}
	return items, nil
}

// Create stores a new expense owned by owner. Any id or owner in the draft is ignored.
func (s *ExpenseService) Create(ctx context.Context, owner string, draft core.ExpenseDraft) (core.Expense, error) {
	if err := draft.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	e := draft.Expense()
	e.ID = 0
	e.UserID = owner

	stored, err := s.store.Insert(ctx, e)
	if err != nil {
		return core.Expense{}, s.classify(ctx, applog.OpCreate, err)
	}

	s.announce(ctx, core.EventCreated, stored)
	return stored, nil
}

// Modify replaces location, amount, date and category of an existing expense.
// The id must name one of the owner's expenses; id and owner never change.
func (s *ExpenseService) Modify(ctx context.Context, owner string, draft core.ExpenseDraft) (core.Expense, error) {
	if draft.ID == nil {
		return core.Expense{}, invalid(core.ErrMissingID)
	}
	id := *draft.ID
	if id <= 0 {
		return core.Expense{}, invalid(core.ErrInvalidExpenseID)
	}

	current, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return core.Expense{}, s.classify(ctx, applog.OpModify, err)
	}

	if err := draft.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	next := draft.Expense()
	updated := current
	updated.Location = next.Location
	updated.Amount = next.Amount
	updated.Date = next.Date
	updated.Category = next.Category

	stored, err := s.store.Update(ctx, updated)
	if err != nil {
		return core.Expense{}, s.classify(ctx, applog.OpModify, err)
	}

	s.announce(ctx, core.EventModified, stored)
	return stored, nil
}

// Delete removes one of the owner's expenses.
func (s *ExpenseService) Delete(ctx context.Context, owner string, id int64) error {
	if id <= 0 {
		return invalid(core.ErrInvalidExpenseID)
	}

	current, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return s.classify(ctx, applog.OpDelete, err)
	}

	if err := s.store.Remove(ctx, owner, id); err != nil {
		return s.classify(ctx, applog.OpDelete, err)
	}

	s.announce(ctx, core.EventDeleted, current)
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func (s *ExpenseService) classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return s.storeFailure(ctx, op, err)
}

func (s *ExpenseService) storeFailure(ctx context.Context, op string, err error) error {
	applog.NewStructuredLogger(s.logger).
		LogError(ctx, "Expense store operation failed", err, applog.ComponentStorage, op, nil)
	return fmt.Errorf("%w: %s", ErrStore, op)
}

func (s *ExpenseService) announce(ctx context.Context, op core.EventOp, e core.Expense) {
	applog.NewStructuredLogger(s.logger).
		LogExpenseChange(ctx, string(op), e.UserID, e.ID, e.Amount.String(), e.Category.String())

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, core.NewExpenseEvent(op, e)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			applog.FieldOperation, string(op),
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err.Error())
	}
}
