package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func testRates() []entity.Rate {
	return []entity.Rate{
		entity.NewRate("ECB", entity.Daily, "USD", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("1.0887")),
		entity.NewRate("ECB", entity.Daily, "USD", time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("1.0927")),
	}
}

func TestNewRatesChanged(t *testing.T) {
	msg := newRatesChanged("ECB", testRates())

	assert.Equal(t, 2, msg.Changed)
	assert.Equal(t, "2024-03-12", msg.From)
	assert.Equal(t, "2024-03-15", msg.To)
	assert.Len(t, msg.Rates, 2)

	many := make([]entity.Rate, maxInlineRates+1)
	for i := range many {
		many[i] = testRates()[0]
	}
	assert.Nil(t, newRatesChanged("ECB", many).Rates)
}

func TestRedisNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Publishes JSON summary", func(t *testing.T) {
		pub := new(mockPublisher)
		pub.On("Publish", ctx, "rates_updated", mock.MatchedBy(func(payload []byte) bool {
			var msg RatesChanged
			return json.Unmarshal(payload, &msg) == nil && msg.Source == "ECB" && msg.Changed == 2
		})).Return(1, nil).Once()

		n := NewRedisNotifier(pub, "rates_updated", logger.NopLogger{})

		require.NoError(t, n.NotifyRatesChanged(ctx, "ECB", testRates()))
		pub.AssertExpectations(t)
	})

	t.Run("Nothing changed", func(t *testing.T) {
		pub := new(mockPublisher)
		n := NewRedisNotifier(pub, "rates_updated", logger.NopLogger{})

		assert.NoError(t, n.NotifyRatesChanged(ctx, "ECB", nil))
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Publish failure", func(t *testing.T) {
		pub := new(mockPublisher)
		pub.On("Publish", ctx, "rates_updated", mock.Anything).Return(0, errors.New("connection refused"))
		n := NewRedisNotifier(pub, "rates_updated", logger.NopLogger{})

		err := n.NotifyRatesChanged(ctx, "ECB", testRates())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestKafkaNotifier(t *testing.T) {
	ctx := context.Background()

	w := new(mockWriter)
	w.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && string(msgs[0].Key) == "BOC"
	})).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	n := NewKafkaNotifier(w, logger.NopLogger{})

	require.NoError(t, n.NotifyRatesChanged(ctx, "BOC", testRates()))
	require.NoError(t, n.NotifyRatesChanged(ctx, "BOC", nil))
	require.NoError(t, n.Close())
	w.AssertExpectations(t)
}

func TestNopNotifier(t *testing.T) {
	assert.NoError(t, NopNotifier{}.NotifyRatesChanged(context.Background(), "ECB", testRates()))
}
