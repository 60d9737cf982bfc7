// Package sqlstore implements the expense store on SQLite and PostgreSQL.
// Statements are built with goqu and rows are mapped with sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"expense-svc/internal/core"
	"expense-svc/internal/store"
)

const (
	tableExpenses = "expenses"

	colID       = "id"
	colUserID   = "user_id"
	colLocation = "location"
	colAmount   = "amount"
	colSpentOn  = "spent_on"
	colCategory = "category"
)

var selectColumns = []any{colID, colUserID, colLocation, colAmount, colSpentOn, colCategory}

type expenseRow struct {
	ID       int64           `db:"id"`
	UserID   string          `db:"user_id"`
	Location string          `db:"location"`
	Amount   decimal.Decimal `db:"amount"`
	SpentOn  core.Date       `db:"spent_on"`
	Category string          `db:"category"`
}

func (r expenseRow) expense() core.Expense {
	return core.Expense{
		ID:       r.ID,
		Location: r.Location,
		Amount:   r.Amount,
		Date:     r.SpentOn,
		Category: core.Category(r.Category),
		UserID:   r.UserID,
	}
}

// Store is an ExpenseStore backed by a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	builder goqu.DialectWrapper
}

// Ensure interface conformance
var (
	_ store.ExpenseStore = (*Store)(nil)
	_ store.Pinger       = (*Store)(nil)
)

// ensureDir creates the directory of a SQLite database file.
func ensureDir(dialect Dialect, dsn string) error {
	if dialect != SQLite || strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}

// Open connects to the database, applies pending migrations and returns a Store.
// For SQLite the dsn is a file path and its directory is created if needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if !dialect.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	if err := ensureDir(dialect, dsn); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", err), db.Close())
	}

	if err := Migrate(dialect, dsn); err != nil {
		return nil, errors.Join(fmt.Errorf("run migrations: %w", err), db.Close())
	}

	return New(db, dialect), nil
}

// New wraps an already open database. The schema must exist.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		builder: goqu.Dialect(dialect.String()),
	}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Query(ctx context.Context, owner string, month *core.Month) ([]core.Expense, error) {
	ds := s.builder.From(tableExpenses).Prepared(true).
		Select(selectColumns...).
		Where(goqu.C(colUserID).Eq(owner))
	if month != nil {
		ds = ds.Where(goqu.C(colSpentOn).Between(goqu.Range(month.Start(), month.Last())))
	}
	query, args, err := ds.Order(goqu.C(colID).Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []expenseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.expense())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, owner string, id int64) (core.Expense, error) {
	query, args, err := s.builder.From(tableExpenses).Prepared(true).
		Select(selectColumns...).
		Where(goqu.Ex{colID: id, colUserID: owner}).
		ToSQL()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build get query: %w", err)
	}

	var row expenseRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, fmt.Errorf("get expense %d: %w", id, store.ErrNotFound)
		}
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return row.expense(), nil
}

func (s *Store) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	ds := s.builder.Insert(tableExpenses).Prepared(true).Rows(goqu.Record{
		colUserID:   e.UserID,
		colLocation: e.Location,
		colAmount:   e.Amount,
		colSpentOn:  e.Date,
		colCategory: e.Category.String(),
	})

	// The sqlite3 goqu dialect has no RETURNING support, so SQLite reads
	// the rowid from the result instead.
	if s.dialect == Postgres {
		query, args, err := ds.Returning(goqu.C(colID)).ToSQL()
		if err != nil {
			return core.Expense{}, fmt.Errorf("build insert: %w", err)
		}
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&e.ID); err != nil {
			return core.Expense{}, fmt.Errorf("insert expense: %w", err)
		}
		return e, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("read inserted id: %w", err)
	}
	return e, nil
}

// Update rewrites the mutable columns in one statement filtered by id and
// owner, so a record owned by someone else is never touched.
func (s *Store) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	query, args, err := s.builder.Update(tableExpenses).Prepared(true).
		Set(goqu.Record{
			colLocation: e.Location,
			colAmount:   e.Amount,
			colSpentOn:  e.Date,
			colCategory: e.Category.String(),
		}).
		Where(goqu.Ex{colID: e.ID, colUserID: e.UserID}).
		ToSQL()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if err := requireAffected(res, "update", e.ID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Store) Remove(ctx context.Context, owner string, id int64) error {
	query, args, err := s.builder.Delete(tableExpenses).Prepared(true).
		Where(goqu.Ex{colID: id, colUserID: owner}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove expense %d: %w", id, err)
	}
	return requireAffected(res, "remove", id)
}

func requireAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s expense %d: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s expense %d: %w", op, id, store.ErrNotFound)
	}
	return nil
}
