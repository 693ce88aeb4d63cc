package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinged struct{ N int }

func TestHandleTyped(t *testing.T) {
	bus := NewInMemoryBus()
	var got []int
	Handle(bus, func(ctx context.Context, evt pinged) error {
		got = append(got, evt.N)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), pinged{N: 1}))
	require.NoError(t, bus.Publish(context.Background(), &pinged{N: 2}))
	assert.Equal(t, []int{1, 2}, got)
}

func TestPublishRunsEveryHandler(t *testing.T) {
	bus := NewInMemoryBus()
	first := errors.New("first")
	calls := 0
	bus.Subscribe(EventTypeOf[pinged](), func(ctx context.Context, event any) error {
		calls++
		return first
	})
	bus.Subscribe(EventTypeOf[pinged](), func(ctx context.Context, event any) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), pinged{})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, bus.Publish(context.Background(), nil), ErrNilEvent)
}
