package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/internal/testserver"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

func newTestClient(t *testing.T) (*Client, *testserver.Server) {
	t.Helper()
	srv := testserver.New(t)
	c, err := New(srv.URL, "")
	require.NoError(t, err)
	return c, srv
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "libsql://db.example.com", want: "https://db.example.com"},
		{in: "https://db.example.com/", want: "https://db.example.com"},
		{in: "http://127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{in: "ftp://db.example.com", wantErr: true},
		{in: "db.example.com", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteBatch(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Execute(ctx,
		Statement{SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, score REAL, data BLOB)"},
		MustStatement("INSERT INTO t (name, score, data) VALUES (?, ?, ?)", "ada", 1.5, []byte{1, 2}),
		Statement{SQL: "SELECT id, name, score, data FROM t"},
	)
	require.NoError(t, err)
	require.Len(t, resp.Results, 4, "three statements plus the close request")

	insert := resp.Result(1)
	require.NotNil(t, insert)
	assert.Equal(t, int64(1), insert.AffectedRowCount)
	id, ok := insert.LastInsertID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	rs := resp.Result(2)
	require.NotNil(t, rs)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, 1, rs.ColumnIndex("name"))
	assert.Equal(t, -1, rs.ColumnIndex("missing"))

	name, err := types.DecodeAs[string](rs.Rows[0][1], types.DeclText)
	require.NoError(t, err)
	assert.Equal(t, "ada", name)
	data, err := types.DecodeAs[[]byte](rs.Rows[0][3], types.DeclBlob)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	// one-shot calls release their stream
	assert.Equal(t, 0, srv.Streams())
	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].Baton)
	assert.Equal(t, "close", calls[0].Requests[3].Type)
}

func TestSessionBatonPropagation(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	s := c.NewSession()

	assert.Empty(t, s.Baton())
	_, err := s.Execute(ctx, Statement{SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY)"})
	require.NoError(t, err)
	first := s.Baton()
	require.NotEmpty(t, first)

	t.Run("statement error still applies the response baton", func(t *testing.T) {
		resp, err := s.Execute(ctx,
			Statement{SQL: "INSERT INTO t (id) VALUES (1)"},
			Statement{SQL: "INSERT INTO missing (id) VALUES (1)"},
			Statement{SQL: "SELECT 1"},
		)
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, 1, qe.Index)
		assert.Equal(t, "INSERT INTO missing (id) VALUES (1)", qe.SQL)
		assert.Contains(t, qe.Message, "missing")
		require.NotNil(t, resp)
		assert.Equal(t, resp.Baton, s.Baton())
		assert.NotEqual(t, first, s.Baton())
	})

	t.Run("transport failure leaves the baton alone", func(t *testing.T) {
		before := s.Baton()
		srv.Intercept(func(w http.ResponseWriter, r *http.Request, body []byte) bool {
			http.Error(w, "boom", http.StatusInternalServerError)
			return true
		})
		_, err := s.Execute(ctx, Statement{SQL: "SELECT 1"})
		srv.Intercept(nil)

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
		assert.Contains(t, string(te.ResponseBody), "boom")
		assert.Contains(t, string(te.RequestBody), `"baton":"`+before+`"`)
		assert.Equal(t, before, s.Baton())
	})

	t.Run("cancellation leaves the baton alone", func(t *testing.T) {
		before := s.Baton()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Execute(cctx, Statement{SQL: "SELECT 1"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, before, s.Baton())
	})

	t.Run("malformed response leaves the baton alone", func(t *testing.T) {
		before := s.Baton()
		for _, body := range []string{
			`{"baton":null}`,
			`{"baton":"other","results":[]}`,
			`{"baton":"other","results":[{"type":"maybe"}]}`,
		} {
			srv.Intercept(func(w http.ResponseWriter, r *http.Request, _ []byte) bool {
				_, _ = io.WriteString(w, body)
				return true
			})
			_, err := s.Execute(ctx, Statement{SQL: "SELECT 1"})
			var ce *ClientError
			require.ErrorAs(t, err, &ce, body)
			assert.Equal(t, before, s.Baton(), body)
		}
		srv.Intercept(nil)

		_, err := s.Execute(ctx, Statement{SQL: "SELECT COUNT(*) FROM t"})
		require.NoError(t, err, "stream still reachable with the kept baton")
	})

	require.NoError(t, s.Close(ctx))
	assert.Empty(t, s.Baton())
	assert.Equal(t, 0, srv.Streams())
}

func TestBatch(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, Statement{SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT UNIQUE)"})
	require.NoError(t, err)

	b := Chain(
		Statement{SQL: "BEGIN"},
		MustStatement("INSERT INTO t (name) VALUES (?)", "ada"),
		MustStatement("INSERT INTO t (name) VALUES (?)", "ada"),
		Statement{SQL: "COMMIT"},
	)
	rollback := b.Add(Not(StepOK(3)), Statement{SQL: "ROLLBACK"})
	always := b.Add(Or(StepOK(3), StepFailed(2)), Statement{SQL: "SELECT 1"})

	res, err := c.Batch(ctx, b)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, qe.Index)
	assert.Equal(t, "INSERT INTO t (name) VALUES (?)", qe.SQL)
	assert.Contains(t, qe.Message, "UNIQUE")

	require.NotNil(t, res)
	assert.True(t, res.Ran(1))
	assert.NotNil(t, res.Error(2))
	assert.False(t, res.Ran(3), "commit skipped after a failure")
	assert.NotNil(t, res.Result(rollback))
	assert.NotNil(t, res.Result(always))

	var count int
	require.NoError(t, srv.DB().QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Zero(t, count, "transaction rolled back")
	assert.Equal(t, 0, srv.Streams())

	t.Run("all steps succeed", func(t *testing.T) {
		s := c.NewSession()
		defer s.Close(ctx)

		res, err := s.Batch(ctx, Chain(
			MustStatement("INSERT INTO t (name) VALUES (?)", "bob"),
			Statement{SQL: "SELECT name FROM t"},
		))
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Result(0).AffectedRowCount)
		require.Len(t, res.Result(1).Rows, 1)
		assert.NotEmpty(t, s.Baton())
	})

	t.Run("missing batch result", func(t *testing.T) {
		srv.Intercept(func(w http.ResponseWriter, r *http.Request, _ []byte) bool {
			_, _ = io.WriteString(w, `{"baton":null,"results":[{"type":"ok","response":{"type":"batch"}},{"type":"ok","response":{"type":"close"}}]}`)
			return true
		})
		defer srv.Intercept(nil)

		_, err := c.Batch(ctx, Chain(Statement{SQL: "SELECT 1"}))
		require.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestSessionBusy(t *testing.T) {
	c, srv := newTestClient(t)
	s := c.NewSession()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv.Intercept(func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		once.Do(func() {
			close(entered)
			<-release
		})
		return false
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background(), Statement{SQL: "SELECT 1"})
		done <- err
	}()

	<-entered
	_, err := s.Execute(context.Background(), Statement{SQL: "SELECT 2"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestStructuralErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		kind error
	}{
		{"not json", `<html>`, ErrMalformedResponse},
		{"missing results", `{"baton":"b1"}`, ErrMissingResults},
		{"null results", `{"baton":"b1","results":null}`, ErrMissingResults},
		{"result count", `{"baton":"b1","results":[]}`, ErrMalformedResponse},
		{"ok without result", `{"baton":"b1","results":[{"type":"ok","response":{"type":"execute"}}]}`, ErrMalformedResponse},
		{"unknown outcome", `{"baton":"b1","results":[{"type":"maybe"}]}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.Intercept(func(w http.ResponseWriter, r *http.Request, body []byte) bool {
				_, _ = io.WriteString(w, tt.body)
				return true
			})

			s := c.NewSession()
			_, err := s.Execute(ctx, Statement{SQL: "SELECT 1"})
			require.ErrorIs(t, err, tt.kind)

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "SELECT 1", ce.Query)
			assert.Equal(t, tt.body, string(ce.ResponseJSON))
			assert.Contains(t, string(ce.RequestJSON), `"sql":"SELECT 1"`)
		})
	}
}

func TestBearerToken(t *testing.T) {
	srv := testserver.New(t)
	srv.Token = "secret"
	ctx := context.Background()

	bad, err := New(srv.URL, "wrong")
	require.NoError(t, err)
	_, err = bad.Execute(ctx, Statement{SQL: "SELECT 1"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)

	good, err := New(srv.URL, "secret")
	require.NoError(t, err)
	_, err = good.Execute(ctx, Statement{SQL: "SELECT 1"})
	require.NoError(t, err)
}

func TestVersionAndDump(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "libsql-server 0.24.1", v)

	sv, err := c.ServerVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.24.1", sv.String())

	_, err = c.Execute(ctx,
		Statement{SQL: "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)"},
		MustStatement("INSERT INTO people (name) VALUES (?)", "O'Brien"),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := c.Dump(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "CREATE TABLE people")
	assert.Contains(t, buf.String(), `INSERT INTO "people" VALUES(1,'O''Brien');`)

	srv.Version = "nightly"
	_, err = c.ServerVersion(ctx)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDumpFailure(t *testing.T) {
	srv := testserver.New(t)
	srv.Token = "secret"
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	_, err = c.Dump(context.Background(), io.Discard)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.True(t, strings.HasPrefix(string(te.ResponseBody), "unauthorized"))
}

func TestTransaction(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, Statement{SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)"})
	require.NoError(t, err)

	count := func() int64 {
		n, err := Scalar[int64](ctx, c, Statement{SQL: "SELECT COUNT(*) FROM t"})
		require.NoError(t, err)
		return n
	}

	s := c.NewSession()
	errBoom := errors.New("boom")
	err = s.Transaction(ctx, func(s *Session) error {
		_, err := s.Execute(ctx, MustStatement("INSERT INTO t (v) VALUES (?)", "a"))
		require.NoError(t, err)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(0), count())

	err = s.Transaction(ctx, func(s *Session) error {
		_, err := s.Execute(ctx, MustStatement("INSERT INTO t (v) VALUES (?)", "b"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count())
	require.NoError(t, s.Close(ctx))
}

func TestMiddleware(t *testing.T) {
	srv := testserver.New(t)
	var events []*CallEvent
	var failures int
	c, err := New(srv.URL, "", WithMiddleware(
		TimingMiddleware(func(e *CallEvent) { events = append(events, e) }),
		ErrorMiddleware(func(e *CallEvent, err error) { failures++ }),
	))
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Statement{SQL: "SELECT 1"})
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), Statement{SQL: "SELECT * FROM nope"})
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].RequestID)
	assert.NotEqual(t, events[0].RequestID, events[1].RequestID)
	assert.Equal(t, "SELECT 1", events[0].Statements[0].SQL)
	assert.Nil(t, events[0].Error)
	assert.Error(t, events[1].Error)
	assert.Equal(t, 1, failures)
}
