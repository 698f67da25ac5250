package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/codename-symbiont/errors"
)

func TestInProcBusPublishSubscribe(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	received := make(chan []byte, 1)
	_, err := bus.Subscribe(context.Background(), "test.subject", func(_ context.Context, msg Message) {
		received <- msg.Data
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "test.subject", []byte("hello")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("hello"), data)
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestInProcBusFanOut(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		_, err := bus.Subscribe(context.Background(), "fan.out", func(_ context.Context, _ Message) {
			wg.Done()
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish(context.Background(), "fan.out", []byte("x")))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestInProcBusRequestReply(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), "echo", func(ctx context.Context, msg Message) {
		require.NotEmpty(t, msg.Reply, "request must carry a reply subject")
		_ = bus.Publish(ctx, msg.Reply, append([]byte("re:"), msg.Data...))
	})
	require.NoError(t, err)

	reply, err := bus.Request(context.Background(), "echo", []byte("ping"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("re:ping"), reply)
}

func TestInProcBusRequestTimeout(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	// Subscriber that never replies
	_, err := bus.Subscribe(context.Background(), "silent", func(context.Context, Message) {})
	require.NoError(t, err)

	start := time.Now()
	_, err = bus.Request(context.Background(), "silent", []byte("ping"), 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), "expected timeout kind, got: %v", err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestInProcBusReplyBeforeDeadlineAccepted(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), "slowish", func(ctx context.Context, msg Message) {
		time.Sleep(30 * time.Millisecond)
		_ = bus.Publish(ctx, msg.Reply, []byte("late but in time"))
	})
	require.NoError(t, err)

	reply, err := bus.Request(context.Background(), "slowish", nil, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte("late but in time"), reply)
}

func TestInProcBusRequestCancelledContextIsTransport(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), "silent", func(context.Context, Message) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = bus.Request(ctx, "silent", []byte("ping"), time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err), "expected transport kind, got: %v", err)
	assert.False(t, errors.IsTimeout(err), "cancellation must not read as a timeout")
}

func TestInProcBusRequestContextDeadlineIsTimeout(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), "silent", func(context.Context, Message) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = bus.Request(ctx, "silent", []byte("ping"), time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), "expected timeout kind, got: %v", err)
}

func TestInProcBusUnsubscribe(t *testing.T) {
	bus := NewInProcBus()
	defer bus.Close()

	received := make(chan struct{}, 2)
	sub, err := bus.Subscribe(context.Background(), "u.test", func(context.Context, Message) {
		received <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "u.test", nil))
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("first message not delivered")
	}

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish(context.Background(), "u.test", nil))

	select {
	case <-received:
		t.Fatal("received message after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInProcBusClosedRejectsUse(t *testing.T) {
	bus := NewInProcBus()
	bus.Close()

	err := bus.Publish(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	_, err = bus.Subscribe(context.Background(), "x", func(context.Context, Message) {})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}
