package notify

import (
	"context"
	"errors"
)

// Sink delivers notifications somewhere: a socket, a table, a channel.
type Sink interface {
	Deliver(ctx context.Context, notifications []Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, notifications []Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, notifications []Notification) error {
	return f(ctx, notifications)
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

// Deliver implements Sink.
func (f Fanout) Deliver(ctx context.Context, notifications []Notification) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, notifications); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelSink forwards notifications to a channel.
type ChannelSink chan<- Notification

// Deliver implements Sink. It blocks until every notification is sent or
// ctx is done.
func (c ChannelSink) Deliver(ctx context.Context, notifications []Notification) error {
	for _, n := range notifications {
		select {
		case c <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
