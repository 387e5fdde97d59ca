// Package client implements the libSQL HTTP pipeline protocol: batched
// statement execution, baton-carried sessions and the auxiliary endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/libsql-go/internal/debug"
)

const pipelinePath = "/v2/pipeline"

// Executor runs a batch of statements as one pipeline call.
type Executor interface {
	Execute(ctx context.Context, stmts ...Statement) (*PipelineResponse, error)
}

// Batcher runs a conditional batch as one pipeline request.
type Batcher interface {
	Batch(ctx context.Context, b Batch) (*BatchResult, error)
}

// Client talks to one libSQL server. A Client holds no session state and is
// safe for concurrent use; transactional continuity lives in a Session.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	logger      *slog.Logger
	middlewares []Middleware
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger; the package debug logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMiddleware appends middlewares wrapped around every pipeline call.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) { c.middlewares = append(c.middlewares, mw...) }
}

// New creates a client for baseURL. libsql:// URLs are served over https.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	normalized, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: normalized,
		token:   token,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeURL rewrites libsql:// to https:// and strips trailing slashes.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "libsql://"); ok {
		raw = "https://" + rest
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// URL returns the normalized base URL.
func (c *Client) URL() string { return c.baseURL }

func (c *Client) log() *slog.Logger { return debug.Or(c.logger) }

// NewSession starts a session without a baton. The first call opens a
// server-side stream.
func (c *Client) NewSession() *Session {
	return &Session{client: c}
}

// Execute runs stmts on a one-shot session whose stream is closed in the
// same call.
func (c *Client) Execute(ctx context.Context, stmts ...Statement) (*PipelineResponse, error) {
	s := c.NewSession()
	return s.execute(ctx, stmts, true)
}

// Batch runs b on a one-shot session whose stream is closed in the same
// call.
func (c *Client) Batch(ctx context.Context, b Batch) (*BatchResult, error) {
	s := c.NewSession()
	return s.batch(ctx, b, true)
}

// pipeline posts one call. A non-nil response is returned whenever the body
// parsed as an envelope, even if the envelope is structurally invalid.
func (c *Client) pipeline(ctx context.Context, baseURL string, call PipelineCall, stmts []Statement) (*PipelineResponse, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("encode pipeline call: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPost, baseURL+pipelinePath, body)
	if err != nil {
		return nil, &TransportError{Op: "pipeline", RequestBody: body, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &TransportError{Op: "pipeline", StatusCode: status, RequestBody: body, ResponseBody: raw}
	}

	var resp PipelineResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ClientError{
			Kind:         ErrMalformedResponse,
			Message:      "error deserializing pipeline response",
			Query:        firstSQL(stmts),
			RequestJSON:  body,
			ResponseJSON: raw,
			Err:          err,
		}
	}
	resp.request, resp.raw = body, raw

	if err := validate(&resp, call, stmts); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// validate checks the envelope structure, then reports the first failed
// statement.
func validate(resp *PipelineResponse, call PipelineCall, stmts []Statement) error {
	structural := func(kind error, msg string) error {
		return &ClientError{
			Kind:         kind,
			Message:      msg,
			Query:        firstSQL(stmts),
			RequestJSON:  resp.request,
			ResponseJSON: resp.raw,
		}
	}

	if resp.Results == nil {
		return structural(ErrMissingResults, "response structure is invalid: results property is missing or null")
	}
	if len(resp.Results) != len(call.Requests) {
		return structural(ErrMalformedResponse,
			fmt.Sprintf("response has %d results for %d requests", len(resp.Results), len(call.Requests)))
	}
	for i, r := range resp.Results {
		switch r.Type {
		case ResultOK:
			switch call.Requests[i].Type {
			case RequestExecute:
				if r.Response == nil || r.Response.Result == nil {
					return structural(ErrMalformedResponse, fmt.Sprintf("result %d has no result set", i))
				}
			case RequestBatch:
				if r.Response == nil || r.Response.Batch == nil {
					return structural(ErrMalformedResponse, fmt.Sprintf("result %d has no batch result", i))
				}
			}
		case ResultErr:
			if r.Error == nil {
				return structural(ErrMalformedResponse, fmt.Sprintf("result %d is an error without a message", i))
			}
		default:
			return structural(ErrMalformedResponse, fmt.Sprintf("result %d has unknown type %q", i, r.Type))
		}
	}

	for i, r := range resp.Results {
		if r.Type != ResultErr {
			continue
		}
		qe := &QueryError{Index: i, Message: r.Error.Message, Code: r.Error.Code}
		if i < len(stmts) {
			qe.SQL = stmts[i].SQL
		}
		return qe
	}
	return nil
}

func firstSQL(stmts []Statement) string {
	if len(stmts) == 0 {
		return ""
	}
	return stmts[0].SQL
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	c.authorize(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Version returns the server version string from GET /version.
func (c *Client) Version(ctx context.Context) (string, error) {
	status, raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return "", &TransportError{Op: "version", Err: err}
	}
	if status < 200 || status > 299 {
		return "", &TransportError{Op: "version", StatusCode: status, ResponseBody: raw}
	}
	return strings.TrimSpace(string(raw)), nil
}

// ServerVersion parses the server version. Servers may prefix the number
// with a product name, so the last parsable field wins.
func (c *Client) ServerVersion(ctx context.Context) (*version.Version, error) {
	s, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(s)
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := version.NewVersion(fields[i]); err == nil {
			return v, nil
		}
	}
	return nil, &ClientError{Kind: ErrMalformedResponse, Message: fmt.Sprintf("unparsable server version %q", s)}
}

// Dump streams the SQL dump of the database into w.
func (c *Client) Dump(ctx context.Context, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dump", nil)
	if err != nil {
		return 0, &TransportError{Op: "dump", Err: err}
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: "dump", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return 0, &TransportError{Op: "dump", StatusCode: resp.StatusCode, ResponseBody: raw}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: "dump", Err: err}
	}
	return n, nil
}
