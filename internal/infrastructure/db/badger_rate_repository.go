package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

const (
	ratePrefix = "rate:"
	pegPrefix  = "peg:"

	// saveChunk bounds the writes of one badger transaction
	saveChunk = 500
)

// BadgerRateRepository implements the rate repository interface using BadgerDB.
// Rate keys are rate:{date}:{source}:{frequency}:{currency} so a date range
// is a contiguous key range.
type BadgerRateRepository struct {
	db     *badger.DB
	logger logger.Logger
}

// OpenBadger opens a BadgerDB at dir, or an in-memory one when dir is empty
func OpenBadger(dir string) (*badger.DB, error) {
	const op = "db.OpenBadger"

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return db, nil
}

// NewBadgerRateRepository creates a BadgerDB rate repository and seeds the
// default pegged-currency table if none is stored yet.
func NewBadgerRateRepository(db *badger.DB, log logger.Logger) (*BadgerRateRepository, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	r := &BadgerRateRepository{db: db, logger: log}

	if err := r.seedPegs(entity.DefaultPeggedCurrencies()); err != nil {
		return nil, err
	}
	return r, nil
}

func rateKey(r entity.Rate) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s:%s", ratePrefix,
		r.Date.Format(entity.DateLayout), r.Source, r.Frequency, r.Currency))
}

func pegKey(c entity.Currency) []byte {
	return []byte(pegPrefix + string(c))
}

// LoadRates returns every stored rate dated within [minDate, maxDate]
func (r *BadgerRateRepository) LoadRates(ctx context.Context, minDate, maxDate time.Time) ([]entity.Rate, error) {
	const op = "db.BadgerRateRepository.LoadRates"

	seek := []byte(ratePrefix + entity.DateOf(minDate).Format(entity.DateLayout))
	// ';' sorts after ':' so this bound covers every key of the last day
	stop := []byte(ratePrefix + entity.DateOf(maxDate).Format(entity.DateLayout) + ";")

	var rates []entity.Rate
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ratePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if bytes.Compare(item.Key(), stop) >= 0 {
				break
			}

			var rate entity.Rate
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rate)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", item.Key(), err)
			}
			rates = append(rates, rate)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return rates, nil
}

// SaveRates upserts rates, writing only those whose stored value differs
func (r *BadgerRateRepository) SaveRates(ctx context.Context, rates []entity.Rate) error {
	const op = "db.BadgerRateRepository.SaveRates"

	written := 0
	for start := 0; start < len(rates); start += saveChunk {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, op)
		}
		end := start + saveChunk
		if end > len(rates) {
			end = len(rates)
		}

		err := r.db.Update(func(txn *badger.Txn) error {
			for _, rate := range rates[start:end] {
				rate.Date = entity.DateOf(rate.Date)
				key := rateKey(rate)

				same, err := sameStoredValue(txn, key, rate)
				if err != nil {
					return err
				}
				if same {
					continue
				}

				data, err := json.Marshal(rate)
				if err != nil {
					return fmt.Errorf("failed to marshal rate: %w", err)
				}
				if err := txn.Set(key, data); err != nil {
					return err
				}
				written++
			}
			return nil
		})
		if err != nil {
			return errors.Wrap(err, op)
		}
	}

	r.logger.Debug("Rates saved", map[string]interface{}{
		"received": len(rates),
		"written":  written,
	})
	return nil
}

func sameStoredValue(txn *badger.Txn, key []byte, rate entity.Rate) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var stored entity.Rate
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	}); err != nil {
		return false, nil
	}
	return stored.Value.Round(entity.ComparePrecision).Equal(rate.Value.Round(entity.ComparePrecision)), nil
}

// LoadPeggedCurrencies returns the stored peg table
func (r *BadgerRateRepository) LoadPeggedCurrencies(ctx context.Context) ([]entity.PeggedCurrency, error) {
	const op = "db.BadgerRateRepository.LoadPeggedCurrencies"

	var pegs []entity.PeggedCurrency
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pegPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p entity.PeggedCurrency
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			pegs = append(pegs, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return pegs, nil
}

// SavePeggedCurrency stores or replaces one peg
func (r *BadgerRateRepository) SavePeggedCurrency(ctx context.Context, p entity.PeggedCurrency) error {
	const op = "db.BadgerRateRepository.SavePeggedCurrency"

	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, op)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pegKey(p.Currency), data)
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// seedPegs writes the default table if no peg has ever been stored
func (r *BadgerRateRepository) seedPegs(pegs []entity.PeggedCurrency) error {
	const op = "db.BadgerRateRepository.seedPegs"

	seeded := false
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pegPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		it.Rewind()
		exists := it.Valid()
		it.Close()
		if exists {
			return nil
		}

		for _, p := range pegs {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := txn.Set(pegKey(p.Currency), data); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return errors.Wrap(err, op)
	}

	if seeded {
		r.logger.Info("Seeded pegged currencies", map[string]interface{}{
			"count": len(pegs),
		})
	}
	return nil
}

