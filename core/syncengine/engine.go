package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/octowatt/core/logger"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/series"
)

// ErrPageLimit is returned when a directional loop exceeds Config.MaxPages.
var ErrPageLimit = errors.New("page limit reached before convergence")

// Stats describes the remote work done by one Sync call.
type Stats struct {
	Seeded        bool
	Pages         int // every request, seed included
	BackwardPages int
	ForwardPages  int
	Added         int // records in the result that were absent from the input
}

// Result is the outcome of a successful Sync.
type Result[T model.Keyed] struct {
	Series []T
	Stats  Stats
}

// Engine reconciles one series against one PagedSource.
type Engine[T model.Keyed] struct {
	name string
	src  PagedSource[T]
	cfg  Config
	log  logger.Logger
}

// New returns an Engine. name only labels errors and log lines.
func New[T model.Keyed](name string, src PagedSource[T], cfg Config, log logger.Logger) *Engine[T] {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Engine[T]{name: name, src: src, cfg: cfg, log: log}
}

// Sync returns existing extended backwards to joinDate and forwards to now.
//
// The call either succeeds with a sorted, deduplicated series or fails without
// returning any records: a failed page discards everything merged so far.
// existing is never modified.
func (e *Engine[T]) Sync(ctx context.Context, existing []T, joinDate, now time.Time) (Result[T], error) {
	var st Stats
	base := series.Merge(existing)
	known := len(base)

	if joinDate.After(now) {
		e.log.Warnf("%s: join date %s is after %s, nothing to fetch", e.name, joinDate.Format(time.RFC3339), now.Format(time.RFC3339))
		return Result[T]{Series: base, Stats: st}, nil
	}

	if len(base) == 0 {
		seed, err := e.src.FetchPage(ctx, Window{}, e.cfg.MaxPageSize)
		st.Seeded = true
		st.Pages++
		if err != nil {
			return Result[T]{}, fmt.Errorf("%s: seed fetch: %w", e.name, err)
		}
		base = series.Merge(seed)
		e.log.Debugw("seed fetched", map[string]any{"series": e.name, "records": len(base)})
	}

	var older, newer []T
	g, gctx := errgroup.WithContext(ctx)
	if len(base) == 0 {
		g.Go(func() error {
			var err error
			newer, st.ForwardPages, err = e.expand(gctx, "forward", joinDate, now)
			return err
		})
	} else {
		minObserved := base[0].Key()
		maxObserved := base[len(base)-1].Key()
		g.Go(func() error {
			var err error
			older, st.BackwardPages, err = e.expand(gctx, "backward", joinDate, minObserved)
			return err
		})
		g.Go(func() error {
			var err error
			newer, st.ForwardPages, err = e.expand(gctx, "forward", maxObserved, now)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result[T]{}, err
	}

	// Held records are merged first so a refetch never rewrites history.
	out := series.Merge(base, older, newer)
	st.Pages += st.BackwardPages + st.ForwardPages
	st.Added = len(out) - known
	e.log.Infow("series synchronized", map[string]any{
		"series":         e.name,
		"records":        len(out),
		"added":          st.Added,
		"pages":          st.Pages,
		"backward_pages": st.BackwardPages,
		"forward_pages":  st.ForwardPages,
	})
	return Result[T]{Series: out, Stats: st}, nil
}

// expand pages through [lower, upper). After every page the upper bound moves
// down to the oldest record seen so far; the loop ends when that boundary
// stops moving or the window collapses.
func (e *Engine[T]) expand(ctx context.Context, dir string, lower, upper time.Time) ([]T, int, error) {
	var pages [][]T
	boundary := upper
	n := 0
	for lower.Before(upper) {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		if e.cfg.MaxPages > 0 && n >= e.cfg.MaxPages {
			return nil, n, fmt.Errorf("%s %s: %w (%d pages)", e.name, dir, ErrPageLimit, n)
		}
		w := Window{From: lower, To: upper}
		page, err := e.src.FetchPage(ctx, w, e.cfg.PageSize)
		n++
		if err != nil {
			return nil, n, fmt.Errorf("%s %s page %d [%s, %s): %w", e.name, dir, n,
				lower.Format(time.RFC3339), upper.Format(time.RFC3339), err)
		}
		pages = append(pages, page)

		reached, _, ok := model.Bounds(page)
		e.log.Debugw("page fetched", map[string]any{
			"series":  e.name,
			"dir":     dir,
			"page":    n,
			"records": len(page),
			"from":    lower,
			"to":      upper,
		})
		if !ok || !reached.Before(boundary) {
			break
		}
		boundary = reached
		upper = reached
	}
	return series.Merge(pages...), n, nil
}
