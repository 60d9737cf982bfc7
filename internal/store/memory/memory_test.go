package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense-svc/internal/core"
	"expense-svc/internal/store"
)

func TestQueryScopesByOwnerAndMonth(t *testing.T) {
	s := NewFromFixtures()
	ctx := context.Background()

	all, err := s.Query(ctx, FixtureUser, nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	for _, e := range all {
		assert.Equal(t, FixtureUser, e.UserID)
	}

	jan, err := s.Query(ctx, FixtureUser, &core.Month{Year: 2019, Month: time.January})
	require.NoError(t, err)
	require.Len(t, jan, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{jan[0].ID, jan[1].ID, jan[2].ID})

	may, err := s.Query(ctx, FixtureUser, &core.Month{Year: 2019, Month: time.May})
	require.NoError(t, err)
	assert.NotNil(t, may)
	assert.Empty(t, may)

	other, err := s.Query(ctx, "other@test.co.uk", nil)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, int64(7), other[0].ID)
}

func TestInsertAssignsIDsAfterSeed(t *testing.T) {
	s := NewFromFixtures()
	e, err := s.Insert(context.Background(), core.Expense{
		Location: "Diner",
		Amount:   decimal.NewFromInt(5000),
		Date:     core.NewDate(2020, 8, 19),
		Category: core.CategoryEatOut,
		UserID:   FixtureUser,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), e.ID)
	assert.Equal(t, 8, s.Len())

	_, err = s.Insert(context.Background(), core.Expense{UserID: FixtureUser})
	assert.ErrorIs(t, err, core.ErrEmptyLocation)
}

func TestGetUpdateRemoveRespectOwner(t *testing.T) {
	s := NewFromFixtures()
	ctx := context.Background()

	_, err := s.Get(ctx, "other@test.co.uk", 5)
	assert.ErrorIs(t, err, store.ErrNotFound)

	e, err := s.Get(ctx, FixtureUser, 5)
	require.NoError(t, err)

	e.UserID = "other@test.co.uk"
	_, err = s.Update(ctx, e)
	assert.ErrorIs(t, err, store.ErrNotFound)

	e.UserID = FixtureUser
	e.Location = "Co-op"
	updated, err := s.Update(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "Co-op", updated.Location)

	assert.ErrorIs(t, s.Remove(ctx, "other@test.co.uk", 5), store.ErrNotFound)
	require.NoError(t, s.Remove(ctx, FixtureUser, 5))
	assert.ErrorIs(t, s.Remove(ctx, FixtureUser, 5), store.ErrNotFound)

	_, err = s.Update(ctx, e)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentInsertsGetDistinctIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Insert(ctx, core.Expense{
				Location: "Cafe",
				Amount:   decimal.NewFromInt(1),
				Date:     core.NewDate(2021, 3, 1),
				Category: core.CategoryCafe,
				UserID:   "u",
			})
			if err == nil {
				ids <- e.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}
