package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a confirmation when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// ErrTimeout is returned when the awaited event does not arrive in time.
var ErrTimeout = errors.New("timeout waiting for event")

// SubscribeFunc registers a sink for the awaited event and returns its handle.
type SubscribeFunc[T any] func(ctx context.Context, sink chan<- T) (event.Subscription, error)

// Observer waits for exactly one occurrence of an event caused by a trigger.
// The subscription is always established before the trigger runs, so an
// event emitted while the trigger is still in flight is buffered, not lost.
type Observer[T any] struct {
	Name      string
	Subscribe SubscribeFunc[T]
	// Match filters events that belong to this confirmation. It runs after
	// the trigger returned, so it may use values the trigger captured.
	Match func(T) bool
	// Check evaluates post-conditions for the matched event.
	Check   func(ctx context.Context, ev T) error
	Timeout time.Duration
	Logger  *zap.Logger
}

// Await subscribes, runs trigger, and blocks until a matching event passed
// Check, the timeout fired, the context was cancelled, or the subscription failed.
func (o *Observer[T]) Await(ctx context.Context, trigger func(ctx context.Context) error) (T, error) {
	var zero T
	if o.Subscribe == nil {
		return zero, fmt.Errorf("%s: subscribe func is nil", o.name())
	}

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sink := make(chan T, 16)
	sub, err := o.Subscribe(ctx, sink)
	if err != nil {
		return zero, fmt.Errorf("%s: subscribe: %w", o.name(), err)
	}
	defer sub.Unsubscribe()
	logger.Debug("listener registered", zap.String("event", o.name()))

	if trigger != nil {
		if err := trigger(ctx); err != nil {
			return zero, fmt.Errorf("%s: trigger: %w", o.name(), o.wrapContext(ctx, err))
		}
	}

	for {
		select {
		case ev := <-sink:
			if o.Match != nil && !o.Match(ev) {
				logger.Debug("ignoring unrelated event", zap.String("event", o.name()))
				continue
			}
			logger.Info("event received", zap.String("event", o.name()))
			if o.Check != nil {
				if err := o.Check(ctx, ev); err != nil {
					return ev, fmt.Errorf("%s: post-condition: %w", o.name(), err)
				}
			}
			return ev, nil
		case err := <-sub.Err():
			if err == nil {
				return zero, fmt.Errorf("%s: subscription closed", o.name())
			}
			return zero, fmt.Errorf("%s: subscription: %w", o.name(), err)
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", o.name(), o.wrapContext(ctx, ctx.Err()))
		}
	}
}

func (o *Observer[T]) wrapContext(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, o.timeoutOrDefault())
	}
	return err
}

func (o *Observer[T]) timeoutOrDefault() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o *Observer[T]) name() string {
	if o.Name == "" {
		return "event"
	}
	return o.Name
}
