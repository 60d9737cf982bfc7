package amqp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"expense-svc/internal/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExpenseSnapshot is the expense as carried on the wire.
type ExpenseSnapshot struct {
	ID       int64           `json:"id"`
	Location string          `json:"location"`
	Amount   decimal.Decimal `json:"amount"`
	Date     core.Date       `json:"date"`
	Category core.Category   `json:"category"`
	UserID   string          `json:"userId"`
}

// ExpenseEventMessage announces a create, modify or delete. Consumers use
// EventID to drop redeliveries.
type ExpenseEventMessage struct {
	EventID   string          `json:"eventId"`
	Op        core.EventOp    `json:"op"`
	UserID    string          `json:"userId"`
	Expense   ExpenseSnapshot `json:"expense"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewExpenseEventMessage builds a message from a domain event.
func NewExpenseEventMessage(ev core.ExpenseEvent) *ExpenseEventMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	e := ev.Expense
	return &ExpenseEventMessage{
		EventID: uuid.NewString(),
		Op:      ev.Op,
		UserID:  e.UserID,
		Expense: ExpenseSnapshot{
			ID:       e.ID,
			Location: e.Location,
			Amount:   e.Amount,
			Date:     e.Date,
			Category: e.Category,
			UserID:   e.UserID,
		},
		Timestamp: ts,
	}
}

// Event converts the message back into a domain event.
func (m *ExpenseEventMessage) Event() core.ExpenseEvent {
	s := m.Expense
	return core.ExpenseEvent{
		Op: m.Op,
		Expense: core.Expense{
			ID:       s.ID,
			Location: s.Location,
			Amount:   s.Amount,
			Date:     s.Date,
			Category: s.Category,
			UserID:   s.UserID,
		},
		OccurredAt: m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON decodes and checks a message body.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := core.ParseEventOp(string(msg.Op)); err != nil {
		return nil, err
	}
	if msg.Expense.ID <= 0 {
		return nil, fmt.Errorf("event %s has no expense id", msg.EventID)
	}
	return &msg, nil
}
