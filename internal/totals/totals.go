package totals

import (
	"context"
	"errors"
	"fmt"
	"log"

	"studytracker/internal/metrics"
	"studytracker/internal/tracker"
)

// MaxRangeDays bounds a single report.
const MaxRangeDays = 366

// ErrRange is returned for an empty or oversized date range.
var ErrRange = errors.New("invalid date range")

// Service answers daily total reports from the cache and recomputes cached
// days from the store when records change.
type Service struct {
	store tracker.Store
	cache Cache
}

func NewService(store tracker.Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

// Daily returns one entry per date in [from, to] that has at least one
// session, oldest first.
func (s *Service) Daily(ctx context.Context, owner tracker.Owner, from, to tracker.Date) ([]tracker.DailyTotal, error) {
	if to.Before(from.Time) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrRange, from, to)
	}
	days := int(to.Sub(from.Time).Hours()/24) + 1
	if days > MaxRangeDays {
		return nil, fmt.Errorf("%w: more than %d days", ErrRange, MaxRangeDays)
	}

	cached := make([]tracker.DailyTotal, 0, days)
	complete := true
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		t, ok, err := s.cache.Get(ctx, owner, d)
		if err != nil {
			log.Printf("totals cache read failed for %s: %v", owner, err)
			complete = false
			break
		}
		if !ok {
			complete = false
			break
		}
		cached = append(cached, t)
	}
	metrics.ObserveTotalsLookup(complete)
	if complete {
		return nonEmpty(cached), nil
	}

	fresh, err := s.store.DailyTotals(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, owner, from, to, fresh)
	return fresh, nil
}

// fill caches every day of the range, zero days included. Days already
// cached are left alone: they were written by a refresh that may have seen
// a later commit than rows.
func (s *Service) fill(ctx context.Context, owner tracker.Owner, from, to tracker.Date, rows []tracker.DailyTotal) {
	byDate := make(map[string]tracker.DailyTotal, len(rows))
	for _, r := range rows {
		byDate[r.Date.String()] = r
	}
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		t, ok := byDate[d.String()]
		if !ok {
			t = tracker.DailyTotal{Date: d}
		}
		if err := s.cache.PutIfAbsent(ctx, owner, t); err != nil {
			log.Printf("totals cache write failed for %s: %v", owner, err)
			return
		}
	}
}

// Refresh recomputes the cached totals touched by evt.
func (s *Service) Refresh(ctx context.Context, evt tracker.ChangeEvent) error {
	for _, owner := range evt.Owners {
		rows, err := s.store.DailyTotals(ctx, owner, evt.Date, evt.Date)
		if err != nil {
			metrics.ObserveTotalsRefresh(metrics.ResultError)
			return fmt.Errorf("refresh %s on %s: %w", owner, evt.Date, err)
		}
		t := tracker.DailyTotal{Date: evt.Date}
		if len(rows) == 1 {
			t = rows[0]
		}
		if err := s.cache.Put(ctx, owner, t); err != nil {
			metrics.ObserveTotalsRefresh(metrics.ResultError)
			return fmt.Errorf("refresh %s on %s: %w", owner, evt.Date, err)
		}
	}
	metrics.ObserveTotalsRefresh(metrics.ResultOK)
	return nil
}

func nonEmpty(in []tracker.DailyTotal) []tracker.DailyTotal {
	out := make([]tracker.DailyTotal, 0, len(in))
	for _, t := range in {
		if t.Sessions > 0 {
			out = append(out, t)
		}
	}
	return out
}
