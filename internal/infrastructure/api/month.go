package api

import (
	"fmt"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// MonthRange is an inclusive date range inside a single calendar month
type MonthRange struct {
	Start time.Time
	End   time.Time
}

// SplitByMonth cuts the inclusive range [start, end] at calendar month
// boundaries. Providers issue one remote call per returned range.
func SplitByMonth(start, end time.Time) ([]MonthRange, error) {
	start, end = entity.DateOf(start), entity.DateOf(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", entity.ErrInvalidDateRange,
			start.Format(entity.DateLayout), end.Format(entity.DateLayout))
	}

	var months []MonthRange
	for cur := start; !cur.After(end); cur = entity.MonthStart(cur).AddDate(0, 1, 0) {
		last := entity.MonthEnd(cur)
		if last.After(end) {
			last = end
		}
		months = append(months, MonthRange{Start: cur, End: last})
	}
	return months, nil
}
