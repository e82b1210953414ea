package db

import (
	"context"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	upsertRateSQL = `
		INSERT INTO rates (source, frequency, currency, rate_date, value)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (source, frequency, currency, rate_date)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		WHERE rates.value <> EXCLUDED.value`

	selectRatesSQL = `
		SELECT source, frequency, currency, rate_date, value::text
		FROM rates
		WHERE rate_date BETWEEN $1 AND $2`

	selectPegsSQL = `SELECT currency, peg_target, multiplier::text FROM pegged_currencies`

	seedPegSQL = `
		INSERT INTO pegged_currencies (currency, peg_target, multiplier)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (currency) DO NOTHING`
)

// PostgresRateRepository implements the rate repository interface using PostgreSQL
type PostgresRateRepository struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresRateRepository wraps an existing pool
func NewPostgresRateRepository(pool *pgxpool.Pool, log logger.Logger) *PostgresRateRepository {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &PostgresRateRepository{db: pool, logger: log}
}

// InitPostgres opens a pool, checks connectivity and seeds the default pegs
func InitPostgres(ctx context.Context, dsn string, log logger.Logger) (*PostgresRateRepository, error) {
	const op = "db.InitPostgres"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 10 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, op)
	}

	repo := NewPostgresRateRepository(pool, log)
	if err := repo.SeedPeggedCurrencies(ctx, entity.DefaultPeggedCurrencies()); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the pool
func (r *PostgresRateRepository) Close() {
	r.db.Close()
}

// LoadRates returns every stored rate dated within [minDate, maxDate]
func (r *PostgresRateRepository) LoadRates(ctx context.Context, minDate, maxDate time.Time) ([]entity.Rate, error) {
	const op = "db.PostgresRateRepository.LoadRates"

	rows, err := r.db.Query(ctx, selectRatesSQL, entity.DateOf(minDate), entity.DateOf(maxDate))
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	var rates []entity.Rate
	for rows.Next() {
		var (
			source, freq, currency, raw string
			date                        time.Time
		)
		if err := rows.Scan(&source, &freq, &currency, &date, &raw); err != nil {
			return nil, errors.Wrap(err, op)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		rates = append(rates, entity.NewRate(source, entity.Frequency(freq), entity.Currency(currency), date, value))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	return rates, nil
}

// SaveRates upserts rates in one transaction. Rows whose stored value is
// equal are left untouched.
func (r *PostgresRateRepository) SaveRates(ctx context.Context, rates []entity.Rate) error {
	const op = "db.PostgresRateRepository.SaveRates"

	if len(rates) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(upsertRateSQL, rate.Source, string(rate.Frequency), string(rate.Currency),
			entity.DateOf(rate.Date), rate.Value.String())
	}

	results := tx.SendBatch(ctx, batch)
	written := int64(0)
	for range rates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return errors.Wrap(err, op)
		}
		written += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, op)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, op)
	}

	r.logger.Debug("Rates saved", map[string]interface{}{
		"received": len(rates),
		"written":  written,
	})
	return nil
}

// LoadPeggedCurrencies returns the stored peg table
func (r *PostgresRateRepository) LoadPeggedCurrencies(ctx context.Context) ([]entity.PeggedCurrency, error) {
	const op = "db.PostgresRateRepository.LoadPeggedCurrencies"

	rows, err := r.db.Query(ctx, selectPegsSQL)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	var pegs []entity.PeggedCurrency
	for rows.Next() {
		var currency, target, raw string
		if err := rows.Scan(&currency, &target, &raw); err != nil {
			return nil, errors.Wrap(err, op)
		}
		multiplier, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		pegs = append(pegs, entity.PeggedCurrency{
			Currency:   entity.Currency(currency),
			PegTarget:  entity.Currency(target),
			Multiplier: multiplier,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	return pegs, nil
}

// SeedPeggedCurrencies inserts pegs that are not stored yet
func (r *PostgresRateRepository) SeedPeggedCurrencies(ctx context.Context, pegs []entity.PeggedCurrency) error {
	const op = "db.PostgresRateRepository.SeedPeggedCurrencies"

	batch := &pgx.Batch{}
	for _, p := range pegs {
		batch.Queue(seedPegSQL, string(p.Currency), string(p.PegTarget), p.Multiplier.String())
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
