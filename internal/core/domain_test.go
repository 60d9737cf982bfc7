package core

import (
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func validDraft() ExpenseDraft {
	amount := decimal.RequireFromString("25.00")
	date := NewDate(2019, 1, 12)
	return ExpenseDraft{
		Location: "Papa Johns",
		Amount:   &amount,
		Date:     &date,
		Category: CategoryEatOut,
	}
}

func TestDateValidate(t *testing.T) {
	require.NoError(t, NewDate(2025, 1, 1).Validate())
	require.NoError(t, NewDate(2025, 12, 31).Validate())
	require.ErrorIs(t, Date{Time: time.Time{}}.Validate(), ErrMissingDate)
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2020, 8, 19))
	require.NoError(t, err)
	assert.Equal(t, `"2020-08-19"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2019-01-12"`), &d))
	assert.Equal(t, 2019, d.Year())
	assert.Equal(t, 1, d.Month())
	assert.Equal(t, 12, d.Day())

	assert.Error(t, json.Unmarshal([]byte(`"12/01/2019"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20190112`), &d))
}

func TestDateScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want Date
	}{
		{"text", "2019-01-12", NewDate(2019, 1, 12)},
		{"bytes", []byte("2019-09-12"), NewDate(2019, 9, 12)},
		{"timestamp text", "2019-03-22T00:00:00Z", NewDate(2019, 3, 22)},
		{"time", time.Date(2020, 8, 19, 13, 0, 0, 0, time.UTC), NewDate(2020, 8, 19)},
		{"nil", nil, Date{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tc.src))
			assert.True(t, tc.want.Equal(d.Time), "got %v want %v", d, tc.want)
		})
	}

	var d Date
	assert.ErrorIs(t, d.Scan(42), ErrInvalidDate)
}

func TestCategoryJSON(t *testing.T) {
	var c Category
	require.NoError(t, json.Unmarshal([]byte(`"UTILITIES"`), &c))
	assert.Equal(t, CategoryUtilities, c)

	err := json.Unmarshal([]byte(`"PETS"`), &c)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	// Matching is exact, lower case is not a known category.
	_, err = ParseCategory("eatout")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	assert.Len(t, Categories(), 13)
}

func TestExpenseDraftValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate())

	zero := decimal.Zero
	withZeroAmount := validDraft()
	withZeroAmount.Amount = &zero
	require.NoError(t, withZeroAmount.Validate(), "zero amount is a valid amount")

	negative := decimal.RequireFromString("-12.50")
	refund := validDraft()
	refund.Amount = &negative
	require.NoError(t, refund.Validate(), "amounts are signed")

	cases := []struct {
		name   string
		mutate func(d *ExpenseDraft)
		want   error
	}{
		{"empty location", func(d *ExpenseDraft) { d.Location = "" }, ErrEmptyLocation},
		{"blank location", func(d *ExpenseDraft) { d.Location = "   " }, ErrEmptyLocation},
		{"long location", func(d *ExpenseDraft) { d.Location = strings.Repeat("a", 201) }, ErrLocationTooLong},
		{"missing amount", func(d *ExpenseDraft) { d.Amount = nil }, ErrMissingAmount},
		{"missing date", func(d *ExpenseDraft) { d.Date = nil }, ErrMissingDate},
		{"missing category", func(d *ExpenseDraft) { d.Category = "" }, ErrMissingCategory},
		{"unknown category", func(d *ExpenseDraft) { d.Category = "PETS" }, ErrInvalidCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			assert.ErrorIs(t, d.Validate(), tc.want)
		})
	}
}

func TestDraftRoundTrip(t *testing.T) {
	e := Expense{
		ID:       7,
		Location: "Diner",
		Amount:   decimal.RequireFromString("5000"),
		Date:     NewDate(2020, 8, 19),
		Category: CategoryEatOut,
		UserID:   "test@test.co.uk",
	}
	got := DraftFromExpense(e).Expense()
	assert.True(t, e.Equal(got), "got %+v", got)
}

func TestExpenseValidate(t *testing.T) {
	good := validDraft().Expense()
	require.NoError(t, good.Validate())

	bad := good
	bad.Category = "PETS"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCategory)

	bad = good
	bad.Date = Date{}
	assert.ErrorIs(t, bad.Validate(), ErrMissingDate)
}
