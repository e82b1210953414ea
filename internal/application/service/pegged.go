package service

import (
	"sort"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// PeggedTable is an immutable snapshot of pegged currencies
type PeggedTable struct {
	entries map[entity.Currency]entity.PeggedCurrency
}

// NewPeggedTable builds a table from entries, returning the ones it rejected:
// unknown codes, self pegs and non-positive multipliers.
func NewPeggedTable(entries []entity.PeggedCurrency) (*PeggedTable, []entity.PeggedCurrency) {
	t := &PeggedTable{entries: make(map[entity.Currency]entity.PeggedCurrency, len(entries))}
	var rejected []entity.PeggedCurrency

	for _, e := range entries {
		if !e.Currency.IsKnown() || !e.PegTarget.IsKnown() || e.Currency == e.PegTarget || !e.Multiplier.IsPositive() {
			rejected = append(rejected, e)
			continue
		}
		t.entries[e.Currency] = e
	}

	return t, rejected
}

// Lookup returns the peg registered for currency
func (t *PeggedTable) Lookup(currency entity.Currency) (entity.PeggedCurrency, bool) {
	if t == nil {
		return entity.PeggedCurrency{}, false
	}
	p, ok := t.entries[currency]
	return p, ok
}

// Len returns the number of pegs
func (t *PeggedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// All returns a copy of the table ordered by currency
func (t *PeggedTable) All() []entity.PeggedCurrency {
	if t == nil {
		return nil
	}
	out := make([]entity.PeggedCurrency, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
