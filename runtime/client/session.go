package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one serial server-side stream. The baton returned by each call
// is echoed on the next one, which is what keeps a transaction open across
// calls. A session allows one call at a time; use separate sessions for
// concurrent work.
type Session struct {
	client *Client
	busy   atomic.Bool

	mu      sync.Mutex
	baton   string
	baseURL string
}

// Baton returns the currently held baton.
func (s *Session) Baton() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baton
}

// Execute sends stmts as one pipeline call.
//
// The held baton is replaced by the response baton once the response is
// fully parsed, even if a statement failed. On a statement failure the
// response is returned together with a *QueryError for the first failed
// statement. Transport failures, malformed responses and cancellation leave
// the baton untouched.
func (s *Session) Execute(ctx context.Context, stmts ...Statement) (*PipelineResponse, error) {
	return s.execute(ctx, stmts, false)
}

// Batch sends b as one batch request. The server skips steps whose condition
// does not hold. A failed step yields the batch result together with a
// *QueryError indexed by step.
func (s *Session) Batch(ctx context.Context, b Batch) (*BatchResult, error) {
	return s.batch(ctx, b, false)
}

func (s *Session) execute(ctx context.Context, stmts []Statement, closeStream bool) (*PipelineResponse, error) {
	reqs := make([]Request, 0, len(stmts)+1)
	for _, st := range stmts {
		reqs = append(reqs, st.request())
	}
	return s.send(ctx, reqs, stmts, closeStream)
}

func (s *Session) batch(ctx context.Context, b Batch, closeStream bool) (*BatchResult, error) {
	resp, err := s.send(ctx, []Request{{Type: RequestBatch, Batch: &b}}, b.statements(), closeStream)
	if err != nil {
		return nil, err
	}
	res := resp.Results[0].Response.Batch
	for i, e := range res.StepErrors {
		if e == nil {
			continue
		}
		qe := &QueryError{Index: i, Message: e.Message, Code: e.Code}
		if i < len(b.Steps) {
			qe.SQL = b.Steps[i].Stmt.SQL
		}
		return res, qe
	}
	return res, nil
}

func (s *Session) send(ctx context.Context, reqs []Request, stmts []Statement, closeStream bool) (*PipelineResponse, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSessionBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	call := PipelineCall{Baton: s.baton, Requests: reqs}
	baseURL := s.baseURL
	s.mu.Unlock()

	if closeStream {
		call.Requests = append(call.Requests, Request{Type: RequestClose})
	}
	if baseURL == "" {
		baseURL = s.client.baseURL
	}

	event := &CallEvent{
		RequestID:  uuid.NewString(),
		Statements: stmts,
		Baton:      call.Baton,
		Start:      time.Now(),
	}
	log := s.client.log().With("request_id", event.RequestID)
	log.Debug("pipeline call", "statements", len(stmts), "baton", call.Baton != "", "close", closeStream)

	var resp *PipelineResponse
	err := s.client.run(ctx, event, func() error {
		var err error
		resp, err = s.client.pipeline(ctx, baseURL, call, stmts)
		return err
	})

	var qe *QueryError
	failed := errors.As(err, &qe)
	if resp != nil && (err == nil || failed) {
		s.mu.Lock()
		s.baton = resp.Baton
		if resp.BaseURL != "" {
			s.baseURL = resp.BaseURL
		}
		s.mu.Unlock()
	}

	if err != nil {
		log.Debug("pipeline call failed", "error", err, "duration", event.Duration)
		if failed {
			return resp, err
		}
		return nil, err
	}
	log.Debug("pipeline call done", "results", len(resp.Results), "duration", event.Duration)
	return resp, nil
}

// Close releases the server stream held by the baton and forgets the baton.
func (s *Session) Close(ctx context.Context) error {
	if s.Baton() == "" {
		return nil
	}
	_, err := s.execute(ctx, nil, true)

	s.mu.Lock()
	s.baton, s.baseURL = "", ""
	s.mu.Unlock()
	return err
}
