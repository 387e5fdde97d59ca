// Package testserver runs an in-process libSQL pipeline server backed by a
// SQLite file, for tests.
package testserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Call is a pipeline call as received by the server.
type Call struct {
	Baton    *string   `json:"baton"`
	Requests []Request `json:"requests"`
}

// Request is one entry of a received call.
type Request struct {
	Type  string `json:"type"`
	Stmt  *Stmt  `json:"stmt"`
	Batch *Batch `json:"batch"`
}

// Stmt is a received statement.
type Stmt struct {
	SQL  string        `json:"sql"`
	Args []types.Value `json:"args"`
}

// Batch is a received batch request.
type Batch struct {
	Steps []Step `json:"steps"`
}

// Step is one statement of a batch.
type Step struct {
	Condition *Cond `json:"condition"`
	Stmt      Stmt  `json:"stmt"`
}

// Cond is a step condition.
type Cond struct {
	Type  string  `json:"type"`
	Step  int     `json:"step"`
	Cond  *Cond   `json:"cond"`
	Conds []*Cond `json:"conds"`
}

type outcome int

const (
	skipped outcome = iota
	succeeded
	failed
)

func (c *Cond) holds(outcomes []outcome) bool {
	if c == nil {
		return true
	}
	at := func(i int) outcome {
		if i < 0 || i >= len(outcomes) {
			return skipped
		}
		return outcomes[i]
	}
	switch c.Type {
	case "ok":
		return at(c.Step) == succeeded
	case "error":
		return at(c.Step) == failed
	case "not":
		return !c.Cond.holds(outcomes)
	case "and":
		for _, sub := range c.Conds {
			if !sub.holds(outcomes) {
				return false
			}
		}
		return true
	case "or":
		for _, sub := range c.Conds {
			if sub.holds(outcomes) {
				return true
			}
		}
		return false
	}
	return false
}

type result struct {
	Type     string    `json:"type"`
	Response *response `json:"response,omitempty"`
	Error    *errBody  `json:"error,omitempty"`
}

type response struct {
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
}

type batchResult struct {
	StepResults []*resultSet `json:"step_results"`
	StepErrors  []*errBody   `json:"step_errors"`
}

type resultSet struct {
	Cols             []col           `json:"cols"`
	Rows             [][]types.Value `json:"rows"`
	AffectedRowCount int64           `json:"affected_row_count"`
	LastInsertRowID  *string         `json:"last_insert_rowid"`
	RowsRead         int64           `json:"rows_read"`
	RowsWritten      int64           `json:"rows_written"`
	QueryDurationMS  float64         `json:"query_duration_ms"`
}

type col struct {
	Name     string `json:"name"`
	DeclType string `json:"decltype,omitempty"`
}

type errBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Interceptor may answer a request itself by returning true.
type Interceptor func(w http.ResponseWriter, r *http.Request, body []byte) bool

// Server is a pipeline server. Each baton maps to one pinned SQLite
// connection, so transactions survive across calls like on a real server.
type Server struct {
	*httptest.Server

	// Token, when set, is required as a bearer token.
	Token string
	// Version is served by GET /version.
	Version string

	db *sql.DB

	mu          sync.Mutex
	streams     map[string]*sql.Conn
	nextBaton   int
	calls       []Call
	interceptor Interceptor
}

// New starts a server on a fresh database in t's temp dir. The server and
// the database are closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	s := &Server{
		Version: "libsql-server 0.24.1",
		db:      db,
		streams: make(map[string]*sql.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/pipeline", s.handlePipeline)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/dump", s.handleDump)
	s.Server = httptest.NewServer(s.authorize(mux))

	t.Cleanup(func() {
		s.Server.Close()
		s.mu.Lock()
		for _, conn := range s.streams {
			_ = conn.Close()
		}
		s.mu.Unlock()
		_ = db.Close()
	})
	return s
}

// DB exposes the backing database for direct setup and assertions.
func (s *Server) DB() *sql.DB { return s.db }

// Calls returns every pipeline call received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Streams returns the number of open streams.
func (s *Server) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Intercept installs fn in front of the pipeline handler.
func (s *Server) Intercept(fn Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interceptor = fn
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, s.Version+"\n")
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	intercept := s.interceptor
	s.mu.Unlock()
	if intercept != nil && intercept(w, r, body) {
		return
	}

	var call Call
	if err := json.Unmarshal(body, &call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var conn *sql.Conn
	if call.Baton != nil && *call.Baton != "" {
		conn = s.streams[*call.Baton]
		delete(s.streams, *call.Baton)
	}
	s.mu.Unlock()

	if call.Baton != nil && *call.Baton != "" && conn == nil {
		http.Error(w, "unknown baton", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if conn == nil {
		conn, err = s.db.Conn(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	results := make([]result, 0, len(call.Requests))
	closed := false
	for _, req := range call.Requests {
		switch req.Type {
		case "execute":
			if req.Stmt == nil {
				results = append(results, result{Type: "error", Error: &errBody{Message: "missing stmt", Code: "PROTOCOL"}})
				continue
			}
			rs, err := execute(ctx, conn, req.Stmt.SQL, req.Stmt.Args)
			if err != nil {
				results = append(results, result{Type: "error", Error: &errBody{Message: err.Error(), Code: "SQLITE_ERROR"}})
				continue
			}
			results = append(results, result{Type: "ok", Response: &response{Type: "execute", Result: rs}})
		case "batch":
			if req.Batch == nil {
				results = append(results, result{Type: "error", Error: &errBody{Message: "missing batch", Code: "PROTOCOL"}})
				continue
			}
			results = append(results, result{Type: "ok", Response: &response{Type: "batch", Result: runBatch(ctx, conn, req.Batch)}})
		case "close":
			closed = true
			results = append(results, result{Type: "ok", Response: &response{Type: "close"}})
		default:
			results = append(results, result{Type: "error", Error: &errBody{Message: "unknown request " + req.Type, Code: "PROTOCOL"}})
		}
	}

	var baton *string
	if closed {
		_ = conn.Close()
	} else {
		s.mu.Lock()
		s.nextBaton++
		b := "baton-" + strconv.Itoa(s.nextBaton)
		s.streams[b] = conn
		s.mu.Unlock()
		baton = &b
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Baton   *string  `json:"baton"`
		BaseURL *string  `json:"base_url"`
		Results []result `json:"results"`
	}{Baton: baton, Results: results})
}

func runBatch(ctx context.Context, conn *sql.Conn, b *Batch) *batchResult {
	res := &batchResult{
		StepResults: make([]*resultSet, len(b.Steps)),
		StepErrors:  make([]*errBody, len(b.Steps)),
	}
	outcomes := make([]outcome, len(b.Steps))
	for i, step := range b.Steps {
		if !step.Condition.holds(outcomes[:i]) {
			continue
		}
		rs, err := execute(ctx, conn, step.Stmt.SQL, step.Stmt.Args)
		if err != nil {
			outcomes[i] = failed
			res.StepErrors[i] = &errBody{Message: err.Error(), Code: "SQLITE_ERROR"}
			continue
		}
		outcomes[i] = succeeded
		res.StepResults[i] = rs
	}
	return res
}

func execute(ctx context.Context, conn *sql.Conn, query string, args []types.Value) (*resultSet, error) {
	native := make([]any, len(args))
	for i, a := range args {
		v, err := a.Native()
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		native[i] = v
	}

	rows, err := conn.QueryContext(ctx, query, native...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	rs := &resultSet{Cols: make([]col, len(colTypes)), Rows: [][]types.Value{}}
	for i, ct := range colTypes {
		rs.Cols[i] = col{Name: ct.Name(), DeclType: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		cells := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]types.Value, len(cells))
		for i, c := range cells {
			row[i] = toValue(c, types.ParseDeclType(rs.Cols[i].DeclType))
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	var changes, lastID int64
	if err := conn.QueryRowContext(ctx, "SELECT changes(), last_insert_rowid()").Scan(&changes, &lastID); err != nil {
		return nil, err
	}
	if len(colTypes) == 0 {
		rs.AffectedRowCount = changes
		rs.RowsWritten = changes
	}
	rs.RowsRead = int64(len(rs.Rows))
	if lastID != 0 {
		id := strconv.FormatInt(lastID, 10)
		rs.LastInsertRowID = &id
	}
	return rs, nil
}

func toValue(c any, decl types.DeclType) types.Value {
	switch x := c.(type) {
	case nil:
		return types.Null()
	case int64:
		return types.Integer(x)
	case float64:
		return types.Float(x)
	case bool:
		if x {
			return types.Integer(1)
		}
		return types.Integer(0)
	case string:
		return types.Text(x)
	case []byte:
		switch decl.Family() {
		case types.FamilyBlob, types.FamilyVector:
			return types.Blob(x)
		default:
			return types.Text(string(x))
		}
	default:
		return types.Text(fmt.Sprint(x))
	}
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := s.db.QueryContext(ctx,
		"SELECT type, name, sql FROM sqlite_master WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' ORDER BY type = 'index', name")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type object struct{ kind, name, sql string }
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.kind, &o.name, &o.sql); err != nil {
			rows.Close()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		objects = append(objects, o)
	}
	rows.Close()

	var b strings.Builder
	b.WriteString("PRAGMA foreign_keys=OFF;\nBEGIN TRANSACTION;\n")
	for _, o := range objects {
		b.WriteString(o.sql + ";\n")
		if o.kind != "table" {
			continue
		}
		if err := dumpRows(ctx, s.db, o.name, &b); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	b.WriteString("COMMIT;\n")
	_, _ = io.WriteString(w, b.String())
}

func dumpRows(ctx context.Context, db *sql.DB, table string, b *strings.Builder) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		lits := make([]string, len(cells))
		for i, c := range cells {
			lits[i] = literal(c)
		}
		fmt.Fprintf(b, "INSERT INTO \"%s\" VALUES(%s);\n", table, strings.Join(lits, ","))
	}
	return rows.Err()
}

func literal(c any) string {
	switch x := c.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []byte:
		return fmt.Sprintf("X'%X'", x)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}
