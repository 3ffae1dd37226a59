package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Notifier delivers plain-text messages. *mailer.Mailer satisfies it.
type Notifier interface {
	SendSimple(to []string, subject, body string) error
}

const (
	defaultNotifyRetries = 1
	defaultNotifyBackoff = 250 * time.Millisecond
)

// options are shared by the usecase constructors.
type options struct {
	now           func() time.Time
	notifyBackoff time.Duration
}

// Option configures a usecase.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithNotifyBackoff overrides the pause before the single notifier retry.
// Non-positive values are ignored.
func WithNotifyBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.notifyBackoff = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, notifyBackoff: defaultNotifyBackoff}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// deliver sends through the notifier, retrying once after a constant backoff.
// It gives up when ctx is done, even if a send is still in flight.
func deliver(ctx context.Context, n Notifier, backoff time.Duration, to, subject, body string) error {
	b := retry.WithMaxRetries(defaultNotifyRetries, retry.NewConstant(backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := send(ctx, n, to, subject, body); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryError, err)
	}

	return nil
}

// send runs one notifier call. The notifier has no context, so an abandoned
// call finishes in the background and its result is dropped.
func send(ctx context.Context, n Notifier, to, subject, body string) error {
	result := make(chan error, 1)
	go func() {
		result <- n.SendSimple([]string{to}, subject, body)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
