package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrorObserver is notified of every swallowed store failure.
type ErrorObserver func(op string)

// Tolerant wraps a Store so that callers never fail because persistence failed.
// Writes log and return nil; reads report any failure as ErrNotFound.
type Tolerant struct {
	inner    Store
	logger   zerolog.Logger
	observer ErrorObserver
}

// NewTolerant wraps inner. observer may be nil.
func NewTolerant(inner Store, logger zerolog.Logger, observer ErrorObserver) *Tolerant {
	return &Tolerant{inner: inner, logger: logger, observer: observer}
}

// Insert forwards to the wrapped store and swallows its error.
func (t *Tolerant) Insert(ctx context.Context, rec Record) error {
	if err := t.inner.Insert(ctx, rec); err != nil {
		t.fail("insert", rec.JobID, err)
	}
	return nil
}

// Update forwards to the wrapped store and swallows its error.
func (t *Tolerant) Update(ctx context.Context, jobID string, u Update) error {
	if err := t.inner.Update(ctx, jobID, u); err != nil {
		t.fail("update", jobID, err)
	}
	return nil
}

// Get forwards to the wrapped store. A miss is not logged.
func (t *Tolerant) Get(ctx context.Context, jobID string) (Record, error) {
	rec, err := t.inner.Get(ctx, jobID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		t.fail("get", jobID, err)
	}
	return Record{}, ErrNotFound
}

// Close closes the wrapped store.
func (t *Tolerant) Close() {
	t.inner.Close()
}

func (t *Tolerant) fail(op, jobID string, err error) {
	t.logger.Warn().Err(err).Str("op", op).Str("job_id", jobID).Msg("job store operation failed")
	if t.observer != nil {
		t.observer(op)
	}
}
