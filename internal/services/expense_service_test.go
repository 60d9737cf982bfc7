package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense-svc/internal/core"
	"expense-svc/internal/store/memory"
)

const owner = memory.FixtureUser

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.ExpenseEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) ops() []core.EventOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventOp, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Op)
	}
	return out
}

// brokenStore fails every call with a driver-level error.
type brokenStore struct{}

var errDriver = errors.New("driver: connection reset")

func (brokenStore) Query(context.Context, string, *core.Month) ([]core.Expense, error) {
	return nil, errDriver
}
func (brokenStore) Get(context.Context, string, int64) (core.Expense, error) {
	return core.Expense{}, errDriver
}
func (brokenStore) Insert(context.Context, core.Expense) (core.Expense, error) {
	return core.Expense{}, errDriver
}
func (brokenStore) Update(context.Context, core.Expense) (core.Expense, error) {
	return core.Expense{}, errDriver
}
func (brokenStore) Remove(context.Context, string, int64) error { return errDriver }

func newService(t *testing.T) (*ExpenseService, *memory.Store, *recordingPublisher) {
	t.Helper()
	st := memory.NewFromFixtures()
	pub := &recordingPublisher{}
	return NewExpenseService(st, WithPublisher(pub)), st, pub
}

func draft(location, amount string, date core.Date, c core.Category) core.ExpenseDraft {
	a := decimal.RequireFromString(amount)
	return core.ExpenseDraft{Location: location, Amount: &a, Date: &date, Category: c}
}

func ptr[T any](v T) *T { return &v }

func TestListByMonth(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	for _, raw := range []string{"2019-01", "2019-1", " 2019-01 "} {
		jan, err := svc.List(ctx, owner, raw)
		require.NoError(t, err, raw)
		assert.Len(t, jan, 3, raw)
	}

	may, err := svc.List(ctx, owner, "2019-5")
	require.NoError(t, err)
	assert.NotNil(t, may)
	assert.Empty(t, may)

	_, err = svc.List(ctx, owner, "2019-13")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, core.ErrInvalidMonthFilter)

	nobody, err := svc.List(ctx, "nobody@test.co.uk", "")
	require.NoError(t, err)
	assert.NotNil(t, nobody)
	assert.Empty(t, nobody)
}

func TestCreateForcesOwnerAndIgnoresID(t *testing.T) {
	svc, st, pub := newService(t)
	ctx := context.Background()

	d := draft("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut)
	d.ID = ptr(int64(1))
	d.UserID = "attacker@test.co.uk"

	created, err := svc.Create(ctx, owner, d)
	require.NoError(t, err)
	assert.Equal(t, owner, created.UserID)
	assert.NotEqual(t, int64(1), created.ID)
	assert.Equal(t, 8, st.Len())

	aug, err := svc.List(ctx, owner, "2020-08")
	require.NoError(t, err)
	require.Len(t, aug, 1)
	assert.True(t, created.Equal(aug[0]))

	original, err := st.Get(ctx, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, "Papa Johns", original.Location, "supplied id must not overwrite")

	assert.Equal(t, []core.EventOp{core.EventCreated}, pub.ops())
}

func TestCreateValidation(t *testing.T) {
	svc, st, pub := newService(t)

	cases := map[string]core.ExpenseDraft{
		"empty location":   draft("  ", "1", core.NewDate(2020, 1, 1), core.CategoryCafe),
		"missing amount":   {Location: "x", Date: ptr(core.NewDate(2020, 1, 1)), Category: core.CategoryCafe},
		"missing date":     {Location: "x", Amount: ptr(decimal.NewFromInt(1)), Category: core.CategoryCafe},
		"missing category": draft("x", "1", core.NewDate(2020, 1, 1), ""),
		"unknown category": draft("x", "1", core.NewDate(2020, 1, 1), "PETS"),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner, d)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 7, st.Len())
	assert.Empty(t, pub.ops())
}

func TestCreateZeroAmountIsValid(t *testing.T) {
	svc, _, _ := newService(t)
	created, err := svc.Create(context.Background(), owner, draft("Freebie", "0", core.NewDate(2020, 1, 1), core.CategoryOther))
	require.NoError(t, err)
	assert.True(t, created.Amount.IsZero())
}

func TestCreateThenDeleteRoundTrip(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, draft("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))

	aug, err := svc.List(ctx, owner, "2020-08")
	require.NoError(t, err)
	assert.Empty(t, aug)

	assert.ErrorIs(t, svc.Delete(ctx, owner, created.ID), ErrNotFound)
	assert.Equal(t, []core.EventOp{core.EventCreated, core.EventDeleted}, pub.ops())
}

func TestModify(t *testing.T) {
	svc, st, pub := newService(t)
	ctx := context.Background()

	d := draft("Spar", "55000", core.NewDate(2019, 9, 12), core.CategoryUtilities)
	d.ID = ptr(int64(5))
	d.UserID = "attacker@test.co.uk"

	updated, err := svc.Modify(ctx, owner, d)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.ID)
	assert.Equal(t, owner, updated.UserID)
	assert.Equal(t, core.CategoryUtilities, updated.Category)

	sep, err := svc.List(ctx, owner, "2019-09")
	require.NoError(t, err)
	require.Len(t, sep, 1)
	assert.True(t, decimal.NewFromInt(55000).Equal(sep[0].Amount))
	assert.Equal(t, core.CategoryUtilities, sep[0].Category)

	assert.Equal(t, 7, st.Len())
	assert.Equal(t, []core.EventOp{core.EventModified}, pub.ops())
}

func TestModifyUnknownOrForeignLeavesStoreUntouched(t *testing.T) {
	svc, st, pub := newService(t)
	ctx := context.Background()
	before, err := st.Query(ctx, owner, nil)
	require.NoError(t, err)

	unknown := draft("Spar", "55000", core.NewDate(2019, 9, 12), core.CategoryUtilities)
	unknown.ID = ptr(int64(5400))
	_, err = svc.Modify(ctx, owner, unknown)
	assert.ErrorIs(t, err, ErrNotFound)

	foreign := unknown
	foreign.ID = ptr(int64(7))
	_, err = svc.Modify(ctx, owner, foreign)
	assert.ErrorIs(t, err, ErrNotFound, "another user's record looks like a missing one")

	_, err = svc.Modify(ctx, owner, draft("Spar", "1", core.NewDate(2019, 9, 12), core.CategoryUtilities))
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, core.ErrMissingID)

	invalidDraft := draft("", "1", core.NewDate(2019, 9, 12), core.CategoryUtilities)
	invalidDraft.ID = ptr(int64(5))
	_, err = svc.Modify(ctx, owner, invalidDraft)
	assert.ErrorIs(t, err, ErrValidation)

	after, err := st.Query(ctx, owner, nil)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].Equal(after[i]))
	}
	assert.Empty(t, pub.ops())
}

func TestDeleteForeignIsNotFound(t *testing.T) {
	svc, st, _ := newService(t)
	assert.ErrorIs(t, svc.Delete(context.Background(), owner, 7), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), owner, 0), ErrValidation)
	assert.Equal(t, 7, st.Len())
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	st := memory.NewFromFixtures()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(st, WithPublisher(pub))

	created, err := svc.Create(context.Background(), owner, draft("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Len(t, pub.ops(), 1)
}

func TestStoreFailuresAreClassified(t *testing.T) {
	svc := NewExpenseService(brokenStore{})
	ctx := context.Background()

	_, err := svc.List(ctx, owner, "")
	assert.ErrorIs(t, err, ErrStore)
	assert.NotContains(t, err.Error(), "connection reset", "driver detail must not leak")

	_, err = svc.Create(ctx, owner, draft("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut))
	assert.ErrorIs(t, err, ErrStore)

	d := draft("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut)
	d.ID = ptr(int64(1))
	_, err = svc.Modify(ctx, owner, d)
	assert.ErrorIs(t, err, ErrStore)

	assert.ErrorIs(t, svc.Delete(ctx, owner, 1), ErrStore)
}

func TestConcurrentModifyAndList(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			d := draft("Spar", decimal.NewFromInt(int64(i)).String(), core.NewDate(2019, 9, 12), core.CategoryGroceries)
			d.ID = ptr(int64(5))
			_, err := svc.Modify(ctx, owner, d)
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			list, err := svc.List(ctx, owner, "2019-09")
			assert.NoError(t, err)
			assert.Len(t, list, 1)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent operations did not finish")
	}
}
