package sqlstore

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense-svc/internal/core"
	"expense-svc/internal/store"
)

const owner = "test@test.co.uk"

func openSQLite(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "expenses.db")
	s, err := Open(context.Background(), SQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func expense(location string, amount string, date core.Date, c core.Category, user string) core.Expense {
	return core.Expense{
		Location: location,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
		Category: c,
		UserID:   user,
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	seed := []core.Expense{
		expense("Papa Johns", "2500", core.NewDate(2019, 1, 12), core.CategoryEatOut, owner),
		expense("Starbucks", "1200", core.NewDate(2019, 1, 12), core.CategoryCafe, owner),
		expense("Electric Co.", "22500", core.NewDate(2019, 1, 31), core.CategoryUtilities, owner),
		expense("Tesco", "45.50", core.NewDate(2019, 2, 1), core.CategoryGroceries, owner),
		expense("Pret", "6.50", core.NewDate(2019, 1, 12), core.CategoryCafe, "other@test.co.uk"),
	}
	var ids []int64
	for _, e := range seed {
		stored, err := s.Insert(ctx, e)
		require.NoError(t, err)
		assert.NotZero(t, stored.ID)
		ids = append(ids, stored.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	all, err := s.Query(ctx, owner, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	jan, err := s.Query(ctx, owner, &core.Month{Year: 2019, Month: time.January})
	require.NoError(t, err)
	require.Len(t, jan, 3)
	assert.True(t, seed[0].Amount.Equal(jan[0].Amount))
	assert.Equal(t, "2019-01-31", jan[2].Date.String())

	may, err := s.Query(ctx, owner, &core.Month{Year: 2019, Month: time.May})
	require.NoError(t, err)
	assert.NotNil(t, may)
	assert.Empty(t, may)

	got, err := s.Get(ctx, owner, ids[3])
	require.NoError(t, err)
	assert.Equal(t, "45.5", got.Amount.String())
	assert.Equal(t, core.CategoryGroceries, got.Category)
	assert.Equal(t, owner, got.UserID)

	_, err = s.Get(ctx, owner, ids[4])
	assert.ErrorIs(t, err, store.ErrNotFound, "other users' records are invisible")
}

func TestSQLiteMonthFilterMatchesWholeMonth(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	for _, d := range []core.Date{
		core.NewDate(9999, 12, 1),
		core.NewDate(9999, 12, 5),
		core.NewDate(9999, 12, 31),
		core.NewDate(9999, 11, 30),
		core.NewDate(2020, 2, 29),
		core.NewDate(2020, 3, 1),
	} {
		_, err := s.Insert(ctx, expense("Spar", "1", d, core.CategoryGroceries, owner))
		require.NoError(t, err)
	}

	tests := []struct {
		raw  string
		want int
	}{
		{"9999-12", 3},
		{"9999-11", 1},
		{"2020-2", 1},
		{"2020-03", 1},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, err := core.ParseMonth(tt.raw)
			require.NoError(t, err)

			got, err := s.Query(ctx, owner, m)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, e := range got {
				assert.True(t, m.Contains(e.Date), "%s outside %s", e.Date, m)
			}
		})
	}
}

func TestSQLiteUpdateAndRemoveScopedByOwner(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	stored, err := s.Insert(ctx, expense("Spar", "18", core.NewDate(2019, 9, 12), core.CategoryGroceries, owner))
	require.NoError(t, err)

	hijack := stored
	hijack.UserID = "other@test.co.uk"
	hijack.Location = "Hijacked"
	_, err = s.Update(ctx, hijack)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stored.Location = "Spar"
	stored.Amount = decimal.RequireFromString("55000")
	stored.Category = core.CategoryUtilities
	_, err = s.Update(ctx, stored)
	require.NoError(t, err)

	got, err := s.Get(ctx, owner, stored.ID)
	require.NoError(t, err)
	assert.True(t, stored.Equal(got), "got %+v", got)

	missing := stored
	missing.ID = 5400
	_, err = s.Update(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Remove(ctx, "other@test.co.uk", stored.ID), store.ErrNotFound)
	require.NoError(t, s.Remove(ctx, owner, stored.ID))
	assert.ErrorIs(t, s.Remove(ctx, owner, stored.ID), store.ErrNotFound)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	s, path := openSQLite(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, expense("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut, owner))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Ping(ctx))
	list, err := reopened.Query(ctx, owner, &core.Month{Year: 2020, Month: time.August})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInsertRejectsInvalidExpense(t *testing.T) {
	s, _ := openSQLite(t)
	_, err := s.Insert(context.Background(), core.Expense{UserID: owner, Location: "x"})
	assert.ErrorIs(t, err, core.ErrMissingDate)
}

func newPostgresMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(sqlx.NewDb(db, "postgres"), Postgres), mock
}

func TestPostgresQueryStatement(t *testing.T) {
	s, mock := newPostgresMock(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "location", "amount", "spent_on", "category"}).
		AddRow(int64(1), owner, "Papa Johns", []byte("2500"), time.Date(2019, 1, 12, 0, 0, 0, 0, time.UTC), "EATOUT").
		AddRow(int64(2), owner, "Starbucks", []byte("1200.00"), time.Date(2019, 1, 12, 0, 0, 0, 0, time.UTC), "CAFE")

	mock.ExpectQuery(`SELECT .+ FROM "expenses" WHERE .*"user_id" = \$1.*"spent_on" BETWEEN \$2 AND \$3.* ORDER BY "id" ASC`).
		WithArgs(owner, "2019-01-01", "2019-01-31").
		WillReturnRows(rows)

	list, err := s.Query(context.Background(), owner, &core.Month{Year: 2019, Month: time.January})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Papa Johns", list[0].Location)
	assert.True(t, decimal.NewFromInt(1200).Equal(list[1].Amount))
	assert.Equal(t, "2019-01-12", list[1].Date.String())
	assert.Equal(t, core.CategoryCafe, list[1].Category)
}

func TestPostgresInsertUsesReturning(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "expenses" ("amount", "category", "location", "spent_on", "user_id") VALUES ($1, $2, $3, $4, $5) RETURNING "id"`)).
		WithArgs("5000", "EATOUT", "Diner", "2020-08-19", owner).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	stored, err := s.Insert(context.Background(), expense("Diner", "5000", core.NewDate(2020, 8, 19), core.CategoryEatOut, owner))
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.ID)
}

func TestPostgresUpdateNoRowsIsNotFound(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`UPDATE "expenses" SET .+ WHERE .*"id" = \$5.*"user_id" = \$6`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := expense("Spar", "55000", core.NewDate(2019, 9, 12), core.CategoryUtilities, owner)
	e.ID = 5400
	_, err := s.Update(context.Background(), e)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresRemoveAndGet(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`DELETE FROM "expenses" WHERE`).
		WithArgs(int64(7), owner).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Remove(context.Background(), owner, 7))

	mock.ExpectQuery(`SELECT .+ FROM "expenses" WHERE`).
		WithArgs(int64(7), owner).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "location", "amount", "spent_on", "category"}))
	_, err := s.Get(context.Background(), owner, 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"sqlite":     SQLite,
		"SQLite3":    SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("mysql")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
