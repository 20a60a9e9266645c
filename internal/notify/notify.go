// Package notify delivers user-facing simulation events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Event is a human readable message produced by the simulation.
type Event struct {
	Message   string
	Severity  Severity
	CreatedAt time.Time
}

func NewEvent(severity Severity, createdAt time.Time, format string, args ...any) Event {
	return Event{
		Message:   fmt.Sprintf(format, args...),
		Severity:  severity,
		CreatedAt: createdAt,
	}
}

// Sink receives events. Delivery is best effort: callers log the error and
// move on.
type Sink interface {
	Notify(ctx context.Context, evt Event) error
}

// Multi fans an event out to every sink. A failing sink does not prevent
// delivery to the others.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error

	for _, s := range m {
		if err := s.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LogSink writes events to the log.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{
		log: logger.With(zap.String("module", "notify")),
	}
}

func (s *LogSink) Notify(_ context.Context, evt Event) error {
	s.log.Info(evt.Message,
		zap.String("severity", string(evt.Severity)),
		zap.Time("created_at", evt.CreatedAt),
	)

	return nil
}

const DefaultFeedSize = 50

// Feed keeps the most recent events in memory for clients to poll.
type Feed struct {
	mu     sync.RWMutex
	events []Event
	size   int
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}

	return &Feed{
		events: make([]Event, 0, size),
		size:   size,
	}
}

func (f *Feed) Notify(_ context.Context, evt Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.events) == f.size {
		copy(f.events, f.events[1:])
		f.events = f.events[:f.size-1]
	}

	f.events = append(f.events, evt)

	return nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns everything held.
func (f *Feed) Recent(limit int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.events)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Event, 0, n)
	for i := len(f.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.events[i])
	}

	return out
}
