// Package http provides HTTP server and handler implementations.
//
// This file implements the JSON request and response shapes of the expense
// API and the helpers that parse them out of a request.

package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"expense-svc/internal/core"
)

const maxBodyBytes = 64 << 10

var (
	errEmptyBody     = errors.New("empty request body")
	errMalformedBody = errors.New("malformed expense body")
	errBodyTooLarge  = errors.New("request body too large")
	errMissingID     = errors.New("missing id parameter")
	errInvalidID     = errors.New("id must be an integer")
)

// jsonAmount is a decimal that travels as a bare JSON number.
type jsonAmount decimal.Decimal

func (a jsonAmount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	return (*decimal.Decimal)(a).UnmarshalJSON(b)
}

// expenseRequest is the body of create and modify. A userId sent by the
// client is accepted and ignored; the owner always comes from the credentials.
type expenseRequest struct {
	ID       *int64        `json:"id"`
	Location string        `json:"location"`
	Amount   *jsonAmount   `json:"amount"`
	Date     *core.Date    `json:"date"`
	Category core.Category `json:"category"`
	UserID   string        `json:"userId,omitempty"`
}

func (req expenseRequest) draft() core.ExpenseDraft {
	d := core.ExpenseDraft{
		ID:       req.ID,
		Location: sanitizeInput(req.Location),
		Date:     req.Date,
		Category: req.Category,
	}
	if req.Amount != nil {
		amount := decimal.Decimal(*req.Amount)
		d.Amount = &amount
	}
	return d
}

type expenseResponse struct {
	ID       int64         `json:"id"`
	Location string        `json:"location"`
	Amount   jsonAmount    `json:"amount"`
	Date     core.Date     `json:"date"`
	Category core.Category `json:"category"`
	UserID   string        `json:"userId"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:       e.ID,
		Location: e.Location,
		Amount:   jsonAmount(e.Amount),
		Date:     e.Date,
		Category: e.Category,
		UserID:   e.UserID,
	}
}

func newExpenseListResponse(items []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, newExpenseResponse(e))
	}
	return out
}

// ParseExpenseDraft reads a JSON expense from the request body.
func ParseExpenseDraft(w http.ResponseWriter, r *http.Request) (core.ExpenseDraft, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.ExpenseDraft{}, errBodyTooLarge
		}
		return core.ExpenseDraft{}, errMalformedBody
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.ExpenseDraft{}, errEmptyBody
	}

	var req expenseRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return core.ExpenseDraft{}, errMalformedBody
	}
	return req.draft(), nil
}

// ParseExpenseID reads the id query parameter.
func ParseExpenseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		return 0, errMissingID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
