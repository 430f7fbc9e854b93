package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type winner struct {
	id   int
	name string
}

func feedSubscribe(feed *event.Feed, subscribed *bool) SubscribeFunc[winner] {
	return func(_ context.Context, sink chan<- winner) (event.Subscription, error) {
		*subscribed = true
		return feed.Subscribe(sink), nil
	}
}

func TestAwaitReceivesEventEmittedDuringTrigger(t *testing.T) {
	var feed event.Feed
	var subscribed bool
	obs := &Observer[winner]{
		Name:      "WinnerPicked",
		Subscribe: feedSubscribe(&feed, &subscribed),
		Timeout:   time.Second,
		Logger:    zap.NewNop(),
	}

	ev, err := obs.Await(context.Background(), func(context.Context) error {
		require.True(t, subscribed, "listener must exist before the trigger runs")
		feed.Send(winner{id: 1, name: "alice"})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", ev.name)
	require.Equal(t, 0, feed.Send(winner{}), "subscription must be released")
}

func TestAwaitAppliesMatchAndCheck(t *testing.T) {
	var feed event.Feed
	var subscribed bool
	var requestID int
	var checked []int

	obs := &Observer[winner]{
		Subscribe: feedSubscribe(&feed, &subscribed),
		Match:     func(ev winner) bool { return ev.id == requestID },
		Check: func(_ context.Context, ev winner) error {
			checked = append(checked, ev.id)
			return nil
		},
		Timeout: time.Second,
	}

	ev, err := obs.Await(context.Background(), func(context.Context) error {
		requestID = 2
		go func() {
			feed.Send(winner{id: 1})
			feed.Send(winner{id: 2, name: "bob"})
		}()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "bob", ev.name)
	require.Equal(t, []int{2}, checked)
}

func TestAwaitRejectsOnFailedPostCondition(t *testing.T) {
	var feed event.Feed
	var subscribed bool
	wantErr := errors.New("players not reset")

	obs := &Observer[winner]{
		Subscribe: feedSubscribe(&feed, &subscribed),
		Check:     func(context.Context, winner) error { return wantErr },
		Timeout:   time.Second,
	}

	_, err := obs.Await(context.Background(), func(context.Context) error {
		go feed.Send(winner{id: 1})
		return nil
	})
	require.ErrorIs(t, err, wantErr)
	require.ErrorContains(t, err, "post-condition")
}

func TestAwaitTimesOut(t *testing.T) {
	var feed event.Feed
	var subscribed bool

	obs := &Observer[winner]{
		Subscribe: feedSubscribe(&feed, &subscribed),
		Timeout:   20 * time.Millisecond,
	}

	start := time.Now()
	_, err := obs.Await(context.Background(), nil)
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestAwaitHonoursCancellation(t *testing.T) {
	var feed event.Feed
	var subscribed bool

	obs := &Observer[winner]{Subscribe: feedSubscribe(&feed, &subscribed), Timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := obs.Await(ctx, func(context.Context) error {
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestAwaitTriggerFailureReleasesSubscription(t *testing.T) {
	var feed event.Feed
	var subscribed bool
	wantErr := errors.New("UpkeepNotNeeded")

	obs := &Observer[winner]{Subscribe: feedSubscribe(&feed, &subscribed), Timeout: time.Second}

	_, err := obs.Await(context.Background(), func(context.Context) error { return wantErr })
	require.ErrorIs(t, err, wantErr)
	require.ErrorContains(t, err, "trigger")
	require.Equal(t, 0, feed.Send(winner{}))
}

func TestAwaitSubscriptionFailure(t *testing.T) {
	wantErr := errors.New("notifications not supported")
	obs := &Observer[winner]{
		Subscribe: func(context.Context, chan<- winner) (event.Subscription, error) { return nil, wantErr },
	}

	triggered := false
	_, err := obs.Await(context.Background(), func(context.Context) error {
		triggered = true
		return nil
	})
	require.ErrorIs(t, err, wantErr)
	require.False(t, triggered, "trigger must not run without a listener")
}

func TestAwaitSubscriptionError(t *testing.T) {
	wantErr := errors.New("connection reset")
	obs := &Observer[winner]{
		Subscribe: func(context.Context, chan<- winner) (event.Subscription, error) {
			return event.NewSubscription(func(<-chan struct{}) error { return wantErr }), nil
		},
		Timeout: time.Second,
	}

	_, err := obs.Await(context.Background(), nil)
	require.ErrorIs(t, err, wantErr)
}
