package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. A timeout surfaces as ErrTimeout so callers can classify it;
// the consumer treats it like any other extraction failure. A timeout of zero
// or less disables the bound.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return apperrors.Newf(apperrors.ErrTimeout, 503, "%s exceeded the %v limit", name, timeout)
	}
}
