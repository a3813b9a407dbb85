package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var first, second atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventResumeStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		first.Add(1)
		return nil
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventResumeStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		second.Add(1)
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventResumeStatusChanged}))

	waitFor(t, func() bool { return first.Load() == 1 && second.Load() == 1 })
}

func TestPublishIgnoresOtherEventTypes(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var calls atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventJobStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMatchStatusChanged}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubscribeTaggedIsIdempotent(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var calls atomic.Int32
	handler := func(ctx context.Context, e interfaces.Event) error {
		calls.Add(1)
		return nil
	}

	require.NoError(t, svc.SubscribeTagged("bridge:resume", interfaces.EventResumeStatusChanged, handler))
	require.NoError(t, svc.SubscribeTagged("bridge:resume", interfaces.EventResumeStatusChanged, handler))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventResumeStatusChanged}))

	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "duplicate tag must not double-deliver")
}

func TestSubscribeTaggedRejectsEmptyTag(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	err := svc.SubscribeTagged("", interfaces.EventResumeStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		return nil
	})
	assert.Error(t, err)
}

func TestFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var healthy atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventMatchStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventMatchStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		panic("worse")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventMatchStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		healthy.Add(1)
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMatchStatusChanged}))

	waitFor(t, func() bool { return healthy.Load() == 1 })
}

func TestCloseDropsSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var calls atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventResumeStatusChanged, func(ctx context.Context, e interfaces.Event) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, svc.Close())

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventResumeStatusChanged}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
