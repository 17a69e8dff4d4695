package batch

import (
	"sync/atomic"
)

// EventKind identifies the payload of an Event.
type EventKind int

const (
	// EventProgress carries the overall completion in Event.Percent (0..100).
	EventProgress EventKind = iota

	// EventLog carries one human-readable log line in Event.Text.
	EventLog

	// EventComplete carries the batch summary in Event.Text. It is the last
	// event before the stream closes.
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	case EventComplete:
		return "complete"
	}
	return "unknown"
}

// Event is one notification from a running batch.
// Percent is set for EventProgress, Text for EventLog and EventComplete.
type Event struct {
	Kind    EventKind
	Percent int
	Text    string
}

// eventBuffer lets the worker run ahead of a slow consumer.
const eventBuffer = 64

// Handle tracks a batch running on its own goroutine.
// Events is closed after the completion event. Consumers either range over
// Events or call Wait, which discards whatever is left unread.
type Handle struct {
	events  chan Event
	done    chan struct{}
	running atomic.Bool

	report *Report
	err    error
}

// Start validates the reference and runs the batch in the background.
// A missing reference fails immediately without starting the worker.
func Start(cfg Config) (*Handle, error) {
	if err := CheckReference(cfg.Reference); err != nil {
		return nil, err
	}

	h := &Handle{
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	h.running.Store(true)

	go func() {
		// Running is false by the time consumers see the stream close.
		defer close(h.done)
		defer close(h.events)
		defer h.running.Store(false)

		h.report, h.err = Run(cfg, chanObserver(h.events))
	}()

	return h, nil
}

// Events returns the notification stream of the batch.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Running reports whether the worker is still processing.
func (h *Handle) Running() bool {
	return h.running.Load()
}

// Wait blocks until the worker exits and returns its report.
// Unread events are drained so the worker never stalls on a full buffer.
func (h *Handle) Wait() (*Report, error) {
	for range h.events {
	}
	<-h.done
	return h.report, h.err
}

// chanObserver forwards observer calls as Events.
type chanObserver chan<- Event

func (c chanObserver) Progress(percent int) {
	c <- Event{Kind: EventProgress, Percent: percent}
}

func (c chanObserver) Log(line string) {
	c <- Event{Kind: EventLog, Text: line}
}

func (c chanObserver) Complete(summary string) {
	c <- Event{Kind: EventComplete, Text: summary}
}
