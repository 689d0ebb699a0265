package syncengine

import (
	"context"
	"time"

	"github.com/kilianp07/octowatt/core/model"
)

// Window bounds a page request to [From, To). A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Empty reports whether the window cannot contain any record.
func (w Window) Empty() bool {
	return !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To)
}

// PagedSource returns one page of records for a window. Within a window the
// newest records are delivered first; a page shorter than pageSize does not by
// itself mean the remote is exhausted. Records inside a page may be in any
// order.
type PagedSource[T model.Keyed] interface {
	FetchPage(ctx context.Context, w Window, pageSize int) ([]T, error)
}

// SourceFunc adapts a function to PagedSource.
type SourceFunc[T model.Keyed] func(ctx context.Context, w Window, pageSize int) ([]T, error)

// FetchPage calls f.
func (f SourceFunc[T]) FetchPage(ctx context.Context, w Window, pageSize int) ([]T, error) {
	return f(ctx, w, pageSize)
}
