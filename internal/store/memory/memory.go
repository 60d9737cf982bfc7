package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"expense-svc/internal/core"
	"expense-svc/internal/store"
)

// FixtureUser owns the expenses returned by Fixtures.
const FixtureUser = "test@test.co.uk"

// Store is an in-process ExpenseStore. A single mutex serialises every
// operation, which also serialises concurrent writes to the same id.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Expense
}

// Ensure interface conformance
var (
	_ store.ExpenseStore = (*Store)(nil)
	_ store.Pinger       = (*Store)(nil)
)

func New() *Store {
	return &Store{nextID: 1, items: make(map[int64]core.Expense)}
}

// NewWithExpenses creates a store holding the given records. Records keep
// their ids; the id sequence continues after the largest one.
func NewWithExpenses(expenses []core.Expense) *Store {
	s := New()
	for _, e := range expenses {
		s.items[e.ID] = e
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return s
}

// Fixtures returns six expenses for FixtureUser, three of them in January 2019,
// plus one record belonging to a different user.
func Fixtures() []core.Expense {
	jan := core.NewDate(2019, 1, 12)
	return []core.Expense{
		{ID: 1, Location: "Papa Johns", Amount: decimal.NewFromInt(2500), Date: jan, Category: core.CategoryEatOut, UserID: FixtureUser},
		{ID: 2, Location: "Starbucks", Amount: decimal.NewFromInt(1200), Date: jan, Category: core.CategoryCafe, UserID: FixtureUser},
		{ID: 3, Location: "Electric Co.", Amount: decimal.NewFromInt(22500), Date: jan, Category: core.CategoryUtilities, UserID: FixtureUser},
		{ID: 4, Location: "Tesco", Amount: decimal.NewFromInt(4550), Date: core.NewDate(2019, 2, 3), Category: core.CategoryGroceries, UserID: FixtureUser},
		{ID: 5, Location: "Spar", Amount: decimal.NewFromInt(1800), Date: core.NewDate(2019, 9, 12), Category: core.CategoryGroceries, UserID: FixtureUser},
		{ID: 6, Location: "Trainline", Amount: decimal.NewFromInt(8900), Date: core.NewDate(2019, 3, 22), Category: core.CategoryTransport, UserID: FixtureUser},
		{ID: 7, Location: "Pret", Amount: decimal.NewFromInt(650), Date: jan, Category: core.CategoryCafe, UserID: "other@test.co.uk"},
	}
}

// NewFromFixtures creates a store seeded with Fixtures.
func NewFromFixtures() *Store {
	return NewWithExpenses(Fixtures())
}

func (s *Store) Query(_ context.Context, owner string, month *core.Month) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Expense, 0)
	for _, e := range s.items {
		if e.UserID != owner {
			continue
		}
		if month != nil && !month.Contains(e.Date) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(_ context.Context, owner string, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok || e.UserID != owner {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, store.ErrNotFound)
	}
	return e, nil
}

// Insert stores the expense and assigns the next id.
func (s *Store) Insert(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	s.items[e.ID] = e
	return e, nil
}

func (s *Store) Update(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[e.ID]
	if !ok || current.UserID != e.UserID {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, store.ErrNotFound)
	}
	s.items[e.ID] = e
	return e, nil
}

func (s *Store) Remove(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok || current.UserID != owner {
		return fmt.Errorf("remove expense %d: %w", id, store.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored expenses across all owners.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
