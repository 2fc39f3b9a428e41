package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/advisor/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventSceneChanged, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventSceneChanged, p.Event)
		return nil
	})

	m.Emit(context.Background(), EventSceneChanged, nil)
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventConversationMessage, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventConversationMessage, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventConversationMessage, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_WithData(t *testing.T) {
	m := testManager()

	type capture struct{ Kind, Value string }
	var got any
	m.On(EventCapture, "test", func(_ context.Context, p Payload) error {
		got = p.Data
		return nil
	})

	m.Emit(context.Background(), EventCapture, capture{Kind: "contact", Value: "a@b.c"})
	assert.Equal(t, capture{Kind: "contact", Value: "a@b.c"}, got)
}

func TestManager_Emit_AnyHandlerRunsLast(t *testing.T) {
	m := testManager()

	var order []string
	m.On(Any, "wildcard", func(_ context.Context, p Payload) error {
		order = append(order, "any:"+p.Event)
		return nil
	})
	m.On(EventSessionSaved, "specific", func(_ context.Context, _ Payload) error {
		order = append(order, "specific")
		return nil
	})

	m.Emit(context.Background(), EventSessionSaved, nil)
	m.Emit(context.Background(), EventSessionRestored, nil)
	assert.Equal(t, []string{"specific", "any:session.saved", "any:session.restored"}, order)
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventGatewayStart, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventGatewayStart, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventGatewayStart, nil)
	assert.True(t, secondCalled)
}

func TestManager_Emit_HandlerPanic(t *testing.T) {
	m := testManager()

	var after int
	m.On(EventCapture, "boom", func(_ context.Context, _ Payload) error { panic("nil map") })
	m.On(EventCapture, "after", func(_ context.Context, _ Payload) error {
		after++
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), EventCapture, nil) })
	m.EmitAsync(context.Background(), EventCapture, nil)
	m.Wait()
	assert.Equal(t, 2, after)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), EventGatewayStop, nil)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var keepCalled, removedCalled int
	m.On(EventConversationState, "remove-me", func(_ context.Context, _ Payload) error {
		removedCalled++
		return nil
	})
	m.On(EventConversationState, "keep-me", func(_ context.Context, _ Payload) error {
		keepCalled++
		return nil
	})

	m.Emit(context.Background(), EventConversationState, nil)
	m.Off(EventConversationState, "remove-me")
	m.Emit(context.Background(), EventConversationState, nil)

	assert.Equal(t, 1, removedCalled)
	assert.Equal(t, 2, keepCalled)

	m.Off(EventConversationState, "keep-me")
	assert.Empty(t, m.Events())
}

func TestManager_EmitAsync_Wait(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	for _, name := range []string{"async1", "async2"} {
		m.On(EventSummaryWritten, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			return nil
		})
	}
	m.On(Any, "async3", func(_ context.Context, _ Payload) error {
		count.Add(1)
		return errors.New("logged only")
	})

	m.EmitAsync(context.Background(), EventSummaryWritten, nil)
	m.Wait()

	assert.Equal(t, int32(3), count.Load())
}

func TestManager_ConcurrentRegistration(t *testing.T) {
	m := testManager()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.On(EventCapture, "h", func(_ context.Context, _ Payload) error { return nil })
		}()
		go func() {
			defer wg.Done()
			m.Emit(context.Background(), EventCapture, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, m.Count(EventCapture))
}

func TestManager_Count(t *testing.T) {
	m := testManager()

	assert.Equal(t, 0, m.Count(EventGatewayStart))

	m.On(EventGatewayStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 1, m.Count(EventGatewayStart))

	m.On(EventGatewayStart, "h2", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 2, m.Count(EventGatewayStart))
}

func TestManager_Events(t *testing.T) {
	m := testManager()

	m.On(EventSessionSaved, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventCapture, "h2", func(_ context.Context, _ Payload) error { return nil })

	assert.Equal(t, []string{EventCapture, EventSessionSaved}, m.Events())
}

func TestAllEvents_NotEmpty(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	assert.Contains(t, AllEvents, EventConversationMessage)
	assert.Contains(t, AllEvents, EventSessionRestored)
	assert.NotContains(t, AllEvents, Any)
}
