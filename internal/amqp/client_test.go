package amqp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense-svc/internal/core"
	applog "expense-svc/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestClientCircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "expenses", queueName: "expense_events"}

	assert.False(t, client.isCircuitOpen(), "closed initially")

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	assert.True(t, client.isCircuitOpen())
	assert.Equal(t, StateOpen, atomic.LoadInt32(&client.state))

	client.failureMu.Lock()
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	client.failureMu.Unlock()
	assert.False(t, client.isCircuitOpen(), "half-open after timeout")
	assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&client.state))

	client.recordFailure()
	assert.True(t, client.isCircuitOpen(), "a failure while half-open reopens")

	client.recordSuccess()
	assert.False(t, client.isCircuitOpen())
	assert.Equal(t, int64(0), atomic.LoadInt64(&client.failureCount))
}

func TestPublishFailsFast(t *testing.T) {
	ev := core.NewExpenseEvent(core.EventCreated, sampleExpense())

	t.Run("circuit open", func(t *testing.T) {
		client := &Client{}
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.Publish(context.Background(), ev)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := &Client{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.Publish(ctx, ev)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReconnectBackoffResetsAfterDeliveries(t *testing.T) {
	var b reconnectBackoff
	for i := 0; i < 6; i++ {
		b.next(0)
	}
	assert.Equal(t, maxBackoff, b.next(0), "idle sessions keep growing the wait")

	assert.Equal(t, time.Second, b.next(3), "a productive session starts over")
	assert.Equal(t, 2*time.Second, b.next(0))
}

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = ln.Close()
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				<-done
				_ = conn.Close()
			}()
		}
	}()
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublishReconnectHonoursContext(t *testing.T) {
	url := silentBroker(t)
	ev := core.NewExpenseEvent(core.EventCreated, sampleExpense())

	t.Run("context deadline", func(t *testing.T) {
		client := &Client{url: url, exchangeName: "expenses", queueName: "expense_events", logger: applog.Discard()}
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := client.Publish(ctx, ev)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, int64(1), atomic.LoadInt64(&client.failureCount))
	})

	t.Run("dial timeout", func(t *testing.T) {
		client := &Client{url: url, exchangeName: "expenses", queueName: "expense_events",
			logger: applog.Discard(), dialTimeout: 200 * time.Millisecond}

		start := time.Now()
		err := client.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func sampleExpense() core.Expense {
	return core.Expense{
		ID:       5,
		Location: "Spar",
		Amount:   decimal.RequireFromString("550.25"),
		Date:     core.NewDate(2019, 9, 12),
		Category: core.CategoryUtilities,
		UserID:   "test@test.co.uk",
	}
}

func TestExpenseEventMessageJSON(t *testing.T) {
	ev := core.NewExpenseEvent(core.EventModified, sampleExpense())
	msg := NewExpenseEventMessage(ev)
	require.NotEmpty(t, msg.EventID)
	assert.Equal(t, "test@test.co.uk", msg.UserID)

	body, err := msg.ToJSON()
	require.NoError(t, err)

	parsed, err := ExpenseEventMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, msg.EventID, parsed.EventID)
	assert.Equal(t, core.EventModified, parsed.Op)
	assert.True(t, parsed.Timestamp.Equal(msg.Timestamp))

	back := parsed.Event()
	assert.True(t, sampleExpense().Equal(back.Expense), "got %+v", back.Expense)
}

func TestExpenseEventMessageRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{"eventId":`,
		"unknown op":   `{"eventId":"e1","op":"archived","expense":{"id":1,"category":"CAFE","date":"2019-01-12","amount":"1"}}`,
		"missing id":   `{"eventId":"e1","op":"created","expense":{"category":"CAFE","date":"2019-01-12","amount":"1"}}`,
		"bad category": `{"eventId":"e1","op":"created","expense":{"id":1,"category":"PETS"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ExpenseEventMessageFromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}
