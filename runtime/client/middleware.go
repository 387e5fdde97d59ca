package client

import (
	"context"
	"time"
)

// CallEvent describes one pipeline call as seen by middlewares.
type CallEvent struct {
	RequestID  string
	Statements []Statement
	Baton      string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
	Error      error
}

// Middleware intercepts pipeline calls. It must call next exactly once to
// perform the call.
type Middleware func(ctx context.Context, event *CallEvent, next func() error) error

func (c *Client) run(ctx context.Context, event *CallEvent, exec func() error) error {
	var next func() error
	index := 0

	next = func() error {
		if index >= len(c.middlewares) {
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		mw := c.middlewares[index]
		index++
		return mw(ctx, event, next)
	}

	return next()
}

// TimingMiddleware reports the duration of every call.
func TimingMiddleware(onTiming func(event *CallEvent)) Middleware {
	return func(ctx context.Context, event *CallEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event)
		}
		return err
	}
}

// ErrorMiddleware reports failed calls.
func ErrorMiddleware(onError func(event *CallEvent, err error)) Middleware {
	return func(ctx context.Context, event *CallEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event, err)
		}
		return err
	}
}
