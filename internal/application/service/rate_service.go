// Package service internal/application/service/rate_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/domain/repository"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// errUsePeg tells resolveLeg to switch to the peg target
var errUsePeg = errors.New("resolve through peg")

// legOptions bounds recursion: a peg hop never pegs again
type legOptions struct {
	allowPeg bool
}

// Option configures a RateService
type Option func(*RateService)

// WithClock overrides the time source used for future-date detection and refresh windows
func WithClock(now func() time.Time) Option {
	return func(s *RateService) { s.now = now }
}

// WithMetrics installs a metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *RateService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithNotifier installs a change notifier for persisted rates
func WithNotifier(n ChangeNotifier) Option {
	return func(s *RateService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithEarliestDate makes requests dated before t resolve to nothing without I/O
func WithEarliestDate(t time.Time) Option {
	return func(s *RateService) {
		if !t.IsZero() {
			s.earliest = entity.DateOf(t)
		}
	}
}

// RateService resolves exchange rates through the cache, the store and the
// registered providers, in that order.
type RateService struct {
	providers map[string]domain.RateProvider
	order     []string
	store     repository.RateRepository
	cache     *cache.RateCache
	pegged    *PeggedTable
	logger    logger.Logger
	metrics   Metrics
	notifier  ChangeNotifier
	now       func() time.Time
	earliest  time.Time
}

// NewRateService creates the engine and loads the pegged-currency table once
func NewRateService(ctx context.Context, store repository.RateRepository, providers []domain.RateProvider, log logger.Logger, opts ...Option) (*RateService, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	s := &RateService{
		providers: make(map[string]domain.RateProvider, len(providers)),
		store:     store,
		logger:    log,
		metrics:   nopMetrics{},
		notifier:  nopNotifier{},
		now:       time.Now,
	}

	for _, p := range providers {
		src := p.Descriptor().Source
		if _, dup := s.providers[src]; dup {
			return nil, fmt.Errorf("duplicate provider for source %q", src)
		}
		s.providers[src] = p
		s.order = append(s.order, src)
	}

	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.NewRateCache(s.logger)

	pegs, err := store.LoadPeggedCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load pegged currencies: %v", entity.ErrStore, err)
	}

	table, rejected := NewPeggedTable(pegs)
	for _, r := range rejected {
		s.logger.Warn("Ignoring invalid pegged currency", map[string]interface{}{
			"currency":   r.Currency.String(),
			"peg_target": r.PegTarget.String(),
			"multiplier": r.Multiplier.String(),
		})
	}
	s.pegged = table

	s.logger.Info("Rate service initialized", map[string]interface{}{
		"sources": s.order,
		"pegged":  table.Len(),
	})

	return s, nil
}

// Providers returns the descriptors of the registered providers in registration order
func (s *RateService) Providers() []domain.ProviderDescriptor {
	out := make([]domain.ProviderDescriptor, 0, len(s.order))
	for _, src := range s.order {
		out = append(out, s.providers[src].Descriptor())
	}
	return out
}

// PeggedCurrencies returns the pegged-currency snapshot
func (s *RateService) PeggedCurrencies() []entity.PeggedCurrency {
	return s.pegged.All()
}

// GetRate validates the request and resolves the rate. Unknown currency codes,
// sources or frequencies fail before any I/O; a rate that cannot be found is
// reported as an invalid NullDecimal with a nil error.
func (s *RateService) GetRate(ctx context.Context, fromCode, toCode string, date time.Time, source string, freq entity.Frequency) (decimal.NullDecimal, error) {
	from, err := entity.ParseCurrency(fromCode)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	to, err := entity.ParseCurrency(toCode)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	p, ok := s.providers[source]
	if !ok {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", entity.ErrUnknownSource, source)
	}

	desc := p.Descriptor()
	if freq == "" {
		freq = desc.DefaultFrequency
	} else if freq, err = entity.ParseFrequency(string(freq)); err != nil {
		return decimal.NullDecimal{}, err
	}
	if !desc.Supports(freq) {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s does not publish %s rates", entity.ErrUnknownFrequency, source, freq)
	}

	value, found := s.Resolve(ctx, from, to, date, source, freq)
	if ctx.Err() != nil {
		return decimal.NullDecimal{}, ctx.Err()
	}
	return decimal.NullDecimal{Decimal: value, Valid: found}, nil
}

// Resolve returns the number of units of to per one unit of from on date.
// The second result is false when no rate could be found.
func (s *RateService) Resolve(ctx context.Context, from, to entity.Currency, date time.Time, source string, freq entity.Frequency) (decimal.Decimal, bool) {
	p, ok := s.providers[source]
	if !ok {
		s.logger.Error("Resolve called for unknown source", map[string]interface{}{"source": source})
		return decimal.Decimal{}, false
	}

	date = entity.DateOf(date)
	value, outcome, err := s.resolve(ctx, p, from, to, date, freq, legOptions{allowPeg: true})

	if err != nil {
		fields := map[string]interface{}{
			"source":    source,
			"frequency": string(freq),
			"date":      date.Format(entity.DateLayout),
			"from":      from.String(),
			"to":        to.String(),
			"error":     err.Error(),
		}
		switch {
		case errors.Is(err, entity.ErrUnsupportedCurrency):
			s.metrics.ObserveResolution(source, OutcomeUnsupported)
			s.logger.Warn("Currency not supported by source", fields)
		default:
			s.metrics.ObserveResolution(source, OutcomeNoRate)
			s.logger.Warn("No exchange rate found", fields)
		}
		return decimal.Decimal{}, false
	}

	s.metrics.ObserveResolution(source, outcome)
	s.logger.Debug("Exchange rate resolved", map[string]interface{}{
		"source":    source,
		"frequency": string(freq),
		"date":      date.Format(entity.DateLayout),
		"from":      from.String(),
		"to":        to.String(),
		"rate":      value.String(),
		"tier":      outcome,
	})

	return value, true
}

// resolve applies the same-currency shortcut and the cross-rate chain rule
func (s *RateService) resolve(ctx context.Context, p domain.RateProvider, from, to entity.Currency, date time.Time, freq entity.Frequency, opts legOptions) (decimal.Decimal, string, error) {
	if from == to {
		return one, TierSame, nil
	}

	base := p.Descriptor().BaseCurrency
	if from != base && to != base {
		left, _, err := s.resolveLeg(ctx, p, from, base, date, freq, opts)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		right, _, err := s.resolveLeg(ctx, p, base, to, date, freq, opts)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		return left.Mul(right), TierCross, nil
	}

	return s.resolveLeg(ctx, p, from, to, date, freq, opts)
}

// resolveLeg resolves a pair where one side is the provider's base currency
func (s *RateService) resolveLeg(ctx context.Context, p domain.RateProvider, from, to entity.Currency, date time.Time, freq entity.Frequency, opts legOptions) (decimal.Decimal, string, error) {
	desc := p.Descriptor()

	lookup := to
	if to == desc.BaseCurrency {
		lookup = from
	}

	raw, tier, err := s.locate(ctx, p, lookup, date, freq, opts)
	if errors.Is(err, errUsePeg) {
		return s.resolvePegged(ctx, p, from, to, lookup, date, freq)
	}
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	value, err := orient(desc, from, to, raw)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	return value, tier, nil
}

// resolvePegged resolves base/pegged through base/target and the fixed multiplier
func (s *RateService) resolvePegged(ctx context.Context, p domain.RateProvider, from, to, pegged entity.Currency, date time.Time, freq entity.Frequency) (decimal.Decimal, string, error) {
	peg, _ := s.pegged.Lookup(pegged)
	base := p.Descriptor().BaseCurrency
	hop := legOptions{allowPeg: false}

	s.logger.Debug("Resolving through peg", map[string]interface{}{
		"currency":   pegged.String(),
		"peg_target": peg.PegTarget.String(),
		"multiplier": peg.Multiplier.String(),
	})

	if from == base {
		// target per base, times pegged per target
		r, _, err := s.resolve(ctx, p, base, peg.PegTarget, date, freq, hop)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		return r.Mul(peg.Multiplier), TierPegged, nil
	}

	// base per target, divided by pegged per target
	r, _, err := s.resolve(ctx, p, peg.PegTarget, base, date, freq, hop)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	return r.Div(peg.Multiplier), TierPegged, nil
}

// orient turns a raw provider value into units of to per unit of from
func orient(desc domain.ProviderDescriptor, from, to entity.Currency, raw decimal.Decimal) (decimal.Decimal, error) {
	var reciprocal bool
	switch desc.QuoteConvention {
	case entity.Direct:
		reciprocal = desc.BaseCurrency == from
	case entity.Indirect:
		reciprocal = desc.BaseCurrency == to
	}

	if !reciprocal {
		return raw, nil
	}
	if raw.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: zero rate for %s/%s", entity.ErrNoRateFound, from, to)
	}
	return one.Div(raw), nil
}

// locate finds the raw value for currency on or before date, walking the
// cache, the store and the provider tiers.
func (s *RateService) locate(ctx context.Context, p domain.RateProvider, currency entity.Currency, date time.Time, freq entity.Frequency, opts legOptions) (decimal.Decimal, string, error) {
	source := p.Descriptor().Source

	if !s.earliest.IsZero() && date.Before(s.earliest) {
		return decimal.Decimal{}, "", fmt.Errorf("%w: %s is before the earliest supported date %s",
			entity.ErrNoRateFound, date.Format(entity.DateLayout), s.earliest.Format(entity.DateLayout))
	}

	// a. exact cache hit
	if v, ok := s.cache.Lookup(source, freq, currency, date); ok {
		return v, TierCache, nil
	}

	// b. store period (month, or quarter for quarterly series)
	start, end := freq.Period(date)
	s.loadStore(ctx, start, end)
	if v, ok := s.retry(source, freq, currency, date); ok {
		return v, TierStore, nil
	}

	// Only structurally absent currencies go through their peg
	if opts.allowPeg && !s.cache.HasCurrency(source, freq, currency) {
		if _, ok := s.pegged.Lookup(currency); ok {
			return decimal.Decimal{}, "", errUsePeg
		}
	}

	// c. provider period
	s.fetchAndPersist(ctx, p, start, end, freq)
	if v, ok := s.retry(source, freq, currency, date); ok {
		return v, TierProvider, nil
	}

	// d. future dates: the current period may hold the latest published rate
	now := s.now().UTC()
	if date.After(entity.DateOf(now)) {
		curStart, curEnd := freq.Period(now)
		if !curStart.Equal(start) {
			s.fetchAndPersist(ctx, p, curStart, curEnd, freq)
			if v, ok := s.retry(source, freq, currency, date); ok {
				return v, TierCurrentPeriod, nil
			}
		}
	}

	// e. preceding period covers gaps at the start of a period, store first
	prevStart, prevEnd := freq.PreviousPeriod(date)
	s.loadStore(ctx, prevStart, prevEnd)
	if v, ok := s.retry(source, freq, currency, date); ok {
		return v, TierPreviousPeriod, nil
	}
	s.fetchAndPersist(ctx, p, prevStart, prevEnd, freq)

	// f. final nearest-below search
	if v, ok := s.retry(source, freq, currency, date); ok {
		return v, TierPreviousPeriod, nil
	}

	if !s.cache.HasCurrency(source, freq, currency) {
		return decimal.Decimal{}, "", fmt.Errorf("%w: %s has no %s rates from %s", entity.ErrUnsupportedCurrency, currency, freq, source)
	}
	return decimal.Decimal{}, "", fmt.Errorf("%w: no %s rate for %s on or before %s",
		entity.ErrNoRateFound, freq, currency, date.Format(entity.DateLayout))
}

// retry is the exact lookup followed by the nearest-below search
func (s *RateService) retry(source string, freq entity.Frequency, currency entity.Currency, date time.Time) (decimal.Decimal, bool) {
	if v, ok := s.cache.Lookup(source, freq, currency, date); ok {
		return v, true
	}
	_, v, ok := s.cache.FindLatestOnOrBefore(source, freq, currency, date)
	return v, ok
}

// loadStore copies the store's rows for [start, end] into the cache
func (s *RateService) loadStore(ctx context.Context, start, end time.Time) {
	rates, err := s.store.LoadRates(ctx, start, end)
	if err != nil {
		s.metrics.ObserveStoreError("load")
		s.logger.Error("Failed to load rates from store", map[string]interface{}{
			"start": start.Format(entity.DateLayout),
			"end":   end.Format(entity.DateLayout),
			"error": err.Error(),
		})
		return
	}

	s.upsertAll(rates)
}

// fetchAndPersist fetches a range from the provider, caches it and saves the
// rows that changed. Failures are logged and swallowed.
func (s *RateService) fetchAndPersist(ctx context.Context, p domain.RateProvider, start, end time.Time, freq entity.Frequency) {
	source := p.Descriptor().Source

	rates, err := s.fetch(ctx, p, start, end, freq)
	if err != nil {
		s.logger.Warn("Provider fetch failed", map[string]interface{}{
			"source":    source,
			"frequency": string(freq),
			"start":     start.Format(entity.DateLayout),
			"end":       end.Format(entity.DateLayout),
			"error":     err.Error(),
		})
		return
	}

	_ = s.persist(ctx, source, s.upsertAll(rates))
}

func (s *RateService) fetch(ctx context.Context, p domain.RateProvider, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error) {
	started := time.Now()
	rates, err := p.FetchRates(ctx, start, end, freq)
	s.metrics.ObserveProviderFetch(p.Descriptor().Source, time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderFetch, err)
	}
	return rates, nil
}

// upsertAll writes rates into the cache and returns the ones that changed
func (s *RateService) upsertAll(rates []entity.Rate) []entity.Rate {
	var changed []entity.Rate
	for _, r := range rates {
		if s.cache.Upsert(r) {
			changed = append(changed, r)
		}
	}
	if len(changed) > 0 {
		s.metrics.SetCacheSize(s.cache.Size())
	}
	return changed
}

// persist saves changed rates in one call and announces them
func (s *RateService) persist(ctx context.Context, source string, changed []entity.Rate) error {
	if len(changed) == 0 {
		return nil
	}

	if err := s.store.SaveRates(ctx, changed); err != nil {
		s.metrics.ObserveStoreError("save")
		s.logger.Error("Failed to persist rates", map[string]interface{}{
			"source": source,
			"count":  len(changed),
			"error":  err.Error(),
		})
		return fmt.Errorf("%w: %v", entity.ErrStore, err)
	}

	if err := s.notifier.NotifyRatesChanged(ctx, source, changed); err != nil {
		s.logger.Warn("Failed to announce rate changes", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	}

	s.logger.Debug("Persisted changed rates", map[string]interface{}{
		"source": source,
		"count":  len(changed),
	})
	return nil
}
