package db

import (
	"context"
	"testing"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupBadger(t *testing.T) (*badger.DB, *BadgerRateRepository) {
	t.Helper()
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewBadgerRateRepository(db, logger.NopLogger{})
	require.NoError(t, err)
	return db, repo
}

func TestBadgerRateRepositoryRoundTrip(t *testing.T) {
	_, repo := setupBadger(t)
	ctx := context.Background()

	rates := []entity.Rate{
		entity.NewRate("ECB", entity.Daily, "USD", day(2024, time.February, 29), decimal.RequireFromString("1.0813")),
		entity.NewRate("ECB", entity.Daily, "USD", day(2024, time.March, 1), decimal.RequireFromString("1.0826")),
		entity.NewRate("BOC", entity.Daily, "USD", day(2024, time.March, 31), decimal.RequireFromString("1.3550")),
		entity.NewRate("ECB", entity.Daily, "JPY", day(2024, time.April, 1), decimal.RequireFromString("163.45")),
	}
	require.NoError(t, repo.SaveRates(ctx, rates))

	t.Run("Month range is inclusive", func(t *testing.T) {
		loaded, err := repo.LoadRates(ctx, day(2024, time.March, 1), day(2024, time.March, 31))

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, day(2024, time.March, 1), loaded[0].Date)
		assert.True(t, rates[1].Value.Equal(loaded[0].Value))
		assert.Equal(t, "BOC", loaded[1].Source)
	})

	t.Run("Empty range", func(t *testing.T) {
		loaded, err := repo.LoadRates(ctx, day(2023, time.January, 1), day(2023, time.January, 31))

		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("Correction overwrites", func(t *testing.T) {
		corrected := entity.NewRate("ECB", entity.Daily, "USD", day(2024, time.March, 1), decimal.RequireFromString("1.0830"))
		require.NoError(t, repo.SaveRates(ctx, []entity.Rate{corrected}))

		loaded, err := repo.LoadRates(ctx, day(2024, time.March, 1), day(2024, time.March, 1))

		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.True(t, corrected.Value.Equal(loaded[0].Value))
	})
}

func TestBadgerRateRepositoryPegs(t *testing.T) {
	db, repo := setupBadger(t)
	ctx := context.Background()

	pegs, err := repo.LoadPeggedCurrencies(ctx)
	require.NoError(t, err)
	assert.Len(t, pegs, len(entity.DefaultPeggedCurrencies()))

	custom := entity.PeggedCurrency{Currency: "HKD", PegTarget: "USD", Multiplier: decimal.RequireFromString("7.8")}
	require.NoError(t, repo.SavePeggedCurrency(ctx, custom))

	// reopening over the same data keeps the stored table
	reopened, err := NewBadgerRateRepository(db, logger.NopLogger{})
	require.NoError(t, err)

	pegs, err = reopened.LoadPeggedCurrencies(ctx)
	require.NoError(t, err)
	assert.Len(t, pegs, len(entity.DefaultPeggedCurrencies())+1)
}

func TestBadgerRateRepositoryCancelledContext(t *testing.T) {
	_, repo := setupBadger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.SaveRates(ctx, []entity.Rate{
		entity.NewRate("ECB", entity.Daily, "USD", day(2024, time.March, 1), decimal.RequireFromString("1.08")),
	})

	assert.ErrorIs(t, err, context.Canceled)
}
