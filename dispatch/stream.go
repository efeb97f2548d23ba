package dispatch

import (
	"context"
	"time"

	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// EventType discriminates streaming events.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventImage    EventType = "image"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one streaming payload. Exactly one terminal event (complete or
// error) closes every stream; start always comes first.
type Event struct {
	Type     EventType `json:"type"`
	Progress int       `json:"progress,omitempty"`
	Image    string    `json:"image,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// progressCheckpoints is the fixed heartbeat sequence emitted while the
// upstream call is in flight.
var progressCheckpoints = []int{10, 25, 50, 75, 90}

// Coordinator wraps one dispatcher call in a deterministic event sequence
// for clients that want incremental feedback.
type Coordinator struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Collector
	delay      time.Duration
}

// NewCoordinator creates a stream coordinator. delay separates progress
// checkpoints; zero means 500ms.
func NewCoordinator(d *Dispatcher, logger *zap.Logger, collector *metrics.Collector, delay time.Duration) *Coordinator {
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &Coordinator{dispatcher: d, logger: logger, metrics: collector, delay: delay}
}

// Stream runs the request and emits
//
//	start -> progress(10..90) -> image... -> complete
//
// on success, or start -> progress... -> error on failure. The channel is
// closed after the terminal event. A cancelled context stops production
// without a terminal event; the consumer is gone anyway.
func (c *Coordinator) Stream(ctx context.Context, req *types.GenerationRequest) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		if !c.emit(ctx, events, Event{Type: EventStart}) {
			return
		}

		// The generation runs while the heartbeat plays out.
		resultCh := make(chan types.GenerationResult, 1)
		go func() {
			resultCh <- c.dispatcher.Generate(ctx, req)
		}()

		for _, pct := range progressCheckpoints {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return
			}
			if !c.emit(ctx, events, Event{Type: EventProgress, Progress: pct}) {
				return
			}
		}

		var result types.GenerationResult
		select {
		case result = <-resultCh:
		case <-ctx.Done():
			return
		}

		if !result.Success {
			c.emit(ctx, events, Event{Type: EventError, Message: result.Error})
			return
		}
		for _, ref := range result.Images {
			if !c.emit(ctx, events, Event{Type: EventImage, Image: ref.String()}) {
				return
			}
		}
		c.emit(ctx, events, Event{Type: EventComplete})
	}()

	return events
}

func (c *Coordinator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		c.metrics.RecordStreamEvent(string(ev.Type))
		return true
	case <-ctx.Done():
		return false
	}
}
