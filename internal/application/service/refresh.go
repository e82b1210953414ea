package service

import (
	"context"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// UpdateResult summarises the bulk refresh of one source
type UpdateResult struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	Changed int    `json:"changed"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// UpdateRates fetches every provider's latest window and persists what changed.
// Each source is isolated: a failure is logged and the next source proceeds.
func (s *RateService) UpdateRates(ctx context.Context) []UpdateResult {
	results := make([]UpdateResult, 0, len(s.order))

	for _, src := range s.order {
		if ctx.Err() != nil {
			results = append(results, UpdateResult{Source: src, Err: ctx.Err(), Error: ctx.Err().Error()})
			continue
		}
		results = append(results, s.updateSource(ctx, src))
	}

	return results
}

func (s *RateService) updateSource(ctx context.Context, source string) UpdateResult {
	p := s.providers[source]
	freq := p.Descriptor().DefaultFrequency
	start, end := freq.LatestWindow(s.now())
	result := UpdateResult{Source: source}

	s.logger.Info("Refreshing latest rates", map[string]interface{}{
		"source":    source,
		"frequency": string(freq),
		"start":     start.Format(entity.DateLayout),
		"end":       end.Format(entity.DateLayout),
	})

	rates, err := s.fetch(ctx, p, start, end, freq)
	if err != nil {
		s.logger.Error("Bulk refresh failed", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		result.Err, result.Error = err, err.Error()
		return result
	}
	result.Fetched = len(rates)

	changed := s.upsertAll(rates)
	result.Changed = len(changed)
	if err := s.persist(ctx, source, changed); err != nil {
		result.Err, result.Error = err, err.Error()
		return result
	}

	s.logger.Info("Bulk refresh completed", map[string]interface{}{
		"source":  source,
		"fetched": result.Fetched,
		"changed": result.Changed,
	})
	return result
}
