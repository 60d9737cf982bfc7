package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of an expense date.
const DateLayout = "2006-01-02"

const (
	CategoryEatOut        Category = "EATOUT"
	CategoryCafe          Category = "CAFE"
	CategoryUtilities     Category = "UTILITIES"
	CategoryGroceries     Category = "GROCERIES"
	CategoryTransport     Category = "TRANSPORT"
	CategoryHousing       Category = "HOUSING"
	CategoryHealth        Category = "HEALTH"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryShopping      Category = "SHOPPING"
	CategoryTravel        Category = "TRAVEL"
	CategoryEducation     Category = "EDUCATION"
	CategoryGifts         Category = "GIFTS"
	CategoryOther         Category = "OTHER"
)

type (
	// Category is the closed set of expense categories.
	Category string

	Date struct {
		time.Time
	}

	// Expense is a stored expense record. ID is zero until the store assigns one.
	Expense struct {
		ID       int64
		Location string
		Amount   decimal.Decimal
		Date     Date
		Category Category
		UserID   string // Owner, fixed at creation
	}

	// ExpenseDraft is an expense as supplied by a caller. Nil pointers are
	// fields the caller left out, so an explicit zero amount stays distinguishable
	// from a missing one.
	ExpenseDraft struct {
		ID       *int64
		Location string           `validate:"notblank,max=200"`
		Amount   *decimal.Decimal `validate:"required"`
		Date     *Date            `validate:"required"`
		Category Category         `validate:"required,category"`
		UserID   string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrEmptyLocation    = errors.New("empty location")
	ErrLocationTooLong  = errors.New("location too long (max 200 characters)")
	ErrMissingAmount    = errors.New("missing amount")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingCategory  = errors.New("missing category")
	ErrMissingID        = errors.New("missing expense id")
	ErrInvalidExpenseID = errors.New("invalid expense id")
)

var allCategories = []Category{
	CategoryEatOut,
	CategoryCafe,
	CategoryUtilities,
	CategoryGroceries,
	CategoryTransport,
	CategoryHousing,
	CategoryHealth,
	CategoryEntertainment,
	CategoryShopping,
	CategoryTravel,
	CategoryEducation,
	CategoryGifts,
	CategoryOther,
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// ParseCategory returns the category named by s. Matching is exact.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

func (c Category) IsValid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// UnmarshalJSON rejects anything outside the closed set, so unknown values
// fail while the request is decoded.
func (c *Category) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCategory, string(b))
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if raw == "null" {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, raw)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. Postgres DATE columns arrive as time.Time,
// SQLite TEXT columns as strings.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidDate, src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(DateLayout), nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Location) == "" {
		return ErrEmptyLocation
	}
	if utf8.RuneCountInString(e.Location) > 200 {
		return ErrLocationTooLong
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	return nil
}

// Equal compares two expenses field by field, amounts by numeric value.
func (e Expense) Equal(o Expense) bool {
	return e.ID == o.ID &&
		e.Location == o.Location &&
		e.Amount.Equal(o.Amount) &&
		e.Date.Equal(o.Date.Time) &&
		e.Category == o.Category &&
		e.UserID == o.UserID
}

// Validate checks that every required field is present and well formed.
// ID and UserID are not checked; callers decide what they mean.
func (d ExpenseDraft) Validate() error {
	return validateDraft(d)
}

// Expense converts a validated draft into an Expense. Missing optional
// pointers become zero values.
func (d ExpenseDraft) Expense() Expense {
	e := Expense{
		Location: strings.TrimSpace(d.Location),
		Category: d.Category,
		UserID:   d.UserID,
	}
	if d.ID != nil {
		e.ID = *d.ID
	}
	if d.Amount != nil {
		e.Amount = *d.Amount
	}
	if d.Date != nil {
		e.Date = *d.Date
	}
	return e
}

// DraftFromExpense is the inverse of ExpenseDraft.Expense.
func DraftFromExpense(e Expense) ExpenseDraft {
	d := ExpenseDraft{
		Location: e.Location,
		Category: e.Category,
		UserID:   e.UserID,
	}
	amount := e.Amount
	d.Amount = &amount
	if !e.Date.IsZero() {
		date := e.Date
		d.Date = &date
	}
	if e.ID != 0 {
		id := e.ID
		d.ID = &id
	}
	return d
}
