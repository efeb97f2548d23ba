package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T, upstream http.HandlerFunc) (*Coordinator, *fakeHistory) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	history := &fakeHistory{}
	configs := &fakeConfigSource{configs: map[string]*store.ProviderConfig{
		"ark": activeConfig("ark", srv.URL),
	}}
	d := newTestDispatcher(configs, history)
	return NewCoordinator(d, zap.NewNop(), nil, time.Millisecond), history
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamSuccessSequence(t *testing.T) {
	c, _ := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"url":"https://img/1.png"},{"url":"https://img/2.png"},{"url":"https://img/3.png"}]}`))
	})

	events := collect(c.Stream(context.Background(), &types.GenerationRequest{
		Prompt: "three images", Type: types.TextToImage, ConfigID: "ark",
	}))

	require.Len(t, events, 10)
	assert.Equal(t, EventStart, events[0].Type)
	for i, pct := range []int{10, 25, 50, 75, 90} {
		assert.Equal(t, EventProgress, events[1+i].Type)
		assert.Equal(t, pct, events[1+i].Progress)
	}
	assert.Equal(t, EventImage, events[6].Type)
	assert.Equal(t, "https://img/1.png", events[6].Image)
	assert.Equal(t, "https://img/2.png", events[7].Image)
	assert.Equal(t, "https://img/3.png", events[8].Image)
	assert.Equal(t, EventComplete, events[9].Type)
}

func TestStreamFailureEmitsSingleErrorTerminal(t *testing.T) {
	c, history := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	events := collect(c.Stream(context.Background(), &types.GenerationRequest{
		Prompt: "p", Type: types.TextToImage, ConfigID: "ark",
	}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "overloaded")

	terminals := 0
	for _, ev := range events {
		if ev.Type == EventComplete || ev.Type == EventError {
			terminals++
		}
		assert.NotEqual(t, EventImage, ev.Type)
	}
	assert.Equal(t, 1, terminals)

	// The attempt completed, so the failure is still recorded.
	assert.Equal(t, 1, history.len())
	assert.False(t, history.last().Success)
}

func TestStreamMissingConfigEmitsError(t *testing.T) {
	c, history := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {})

	events := collect(c.Stream(context.Background(), &types.GenerationRequest{
		Prompt: "p", Type: types.TextToImage, ConfigID: "ghost",
	}))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "not found")
	assert.Equal(t, 0, history.len())
}

func TestStreamCancellationStopsProduction(t *testing.T) {
	c, _ := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"data":[{"url":"https://img/1.png"}]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Stream(ctx, &types.GenerationRequest{
		Prompt: "p", Type: types.TextToImage, ConfigID: "ark",
	})

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, EventStart, ev.Type)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream did not stop after cancellation")
		}
	}
}
