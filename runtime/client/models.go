package client

import (
	"encoding/json"
	"fmt"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Request types of the pipeline protocol.
const (
	RequestExecute = "execute"
	RequestBatch   = "batch"
	RequestClose   = "close"
)

// Result outcomes of the pipeline protocol.
const (
	ResultOK  = "ok"
	ResultErr = "error"
)

// PipelineCall is the body of POST /v2/pipeline.
type PipelineCall struct {
	Baton    string    `json:"baton,omitempty"`
	Requests []Request `json:"requests"`
}

// Request is one entry of a pipeline call.
type Request struct {
	Type  string `json:"type"`
	Stmt  *Stmt  `json:"stmt,omitempty"`
	Batch *Batch `json:"batch,omitempty"`
}

// Stmt is an SQL statement with positional arguments.
type Stmt struct {
	SQL  string        `json:"sql"`
	Args []types.Value `json:"args,omitempty"`
}

// PipelineResponse is the parsed body of a pipeline call. Results line up
// 1:1 with the requests of the call.
type PipelineResponse struct {
	Baton   string           `json:"baton,omitempty"`
	BaseURL string           `json:"base_url,omitempty"`
	Results []PipelineResult `json:"results"`

	request []byte
	raw     []byte
}

// PipelineResult is the outcome of one request.
type PipelineResult struct {
	Type     string             `json:"type"`
	Response *StatementResponse `json:"response,omitempty"`
	Error    *ResultError       `json:"error,omitempty"`
}

// StatementResponse wraps the result of an execute or batch request. Batch
// is set instead of Result when Type is "batch".
type StatementResponse struct {
	Type   string       `json:"type"`
	Result *ResultSet   `json:"result,omitempty"`
	Batch  *BatchResult `json:"-"`
}

func (r *StatementResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type   string          `json:"type"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Type = wire.Type
	if len(wire.Result) == 0 || string(wire.Result) == "null" {
		return nil
	}
	if wire.Type == RequestBatch {
		r.Batch = new(BatchResult)
		return json.Unmarshal(wire.Result, r.Batch)
	}
	r.Result = new(ResultSet)
	return json.Unmarshal(wire.Result, r.Result)
}

// ResultSet is the result of one executed statement.
type ResultSet struct {
	Cols             []Col           `json:"cols"`
	Rows             [][]types.Value `json:"rows"`
	AffectedRowCount int64           `json:"affected_row_count"`
	LastInsertRowID  json.Number     `json:"last_insert_rowid,omitempty"`
	RowsRead         int64           `json:"rows_read"`
	RowsWritten      int64           `json:"rows_written"`
	QueryDurationMS  float64         `json:"query_duration_ms"`
}

// Col describes one result column.
type Col struct {
	Name     string `json:"name"`
	DeclType string `json:"decltype,omitempty"`
}

// ResultError is the server message of a failed statement.
type ResultError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Result returns the result set of the i-th statement.
func (r *PipelineResponse) Result(i int) *ResultSet {
	if i < 0 || i >= len(r.Results) || r.Results[i].Response == nil {
		return nil
	}
	return r.Results[i].Response.Result
}

// RequestJSON returns the request body that produced the response.
func (r *PipelineResponse) RequestJSON() []byte { return r.request }

// ResponseJSON returns the raw response body.
func (r *PipelineResponse) ResponseJSON() []byte { return r.raw }

// LastInsertID returns the rowid of the last inserted row, if the server
// reported one.
func (rs *ResultSet) LastInsertID() (int64, bool) {
	if rs == nil || rs.LastInsertRowID == "" {
		return 0, false
	}
	n, err := rs.LastInsertRowID.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// ColumnIndex returns the position of the named column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Statement is one SQL statement of a batch.
type Statement struct {
	SQL  string
	Args []types.Value
}

// NewStatement encodes native Go arguments into a statement.
func NewStatement(sql string, args ...any) (Statement, error) {
	vals, err := types.EncodeAll(args...)
	if err != nil {
		return Statement{}, fmt.Errorf("statement %q: %w", sql, err)
	}
	return Statement{SQL: sql, Args: vals}, nil
}

// MustStatement is NewStatement that panics on unencodable arguments.
func MustStatement(sql string, args ...any) Statement {
	s, err := NewStatement(sql, args...)
	if err != nil {
		panic(err)
	}
	return s
}

// Batch is a list of steps the server runs in order within one request. A
// step with a condition runs only if the condition holds over the outcomes
// of earlier steps.
type Batch struct {
	Steps []BatchStep `json:"steps"`
}

// BatchStep is one statement of a batch.
type BatchStep struct {
	Condition *BatchCond `json:"condition,omitempty"`
	Stmt      Stmt       `json:"stmt"`
}

// BatchCond is a condition over the outcomes of earlier batch steps. A step
// that was skipped is neither ok nor failed.
type BatchCond struct {
	Type  string       `json:"type"`
	Step  *int         `json:"step,omitempty"`
	Cond  *BatchCond   `json:"cond,omitempty"`
	Conds []*BatchCond `json:"conds,omitempty"`
}

// StepOK holds if step ran and succeeded.
func StepOK(step int) *BatchCond { return &BatchCond{Type: "ok", Step: &step} }

// StepFailed holds if step ran and failed.
func StepFailed(step int) *BatchCond { return &BatchCond{Type: "error", Step: &step} }

// Not negates c.
func Not(c *BatchCond) *BatchCond { return &BatchCond{Type: "not", Cond: c} }

// And holds if every condition holds.
func And(conds ...*BatchCond) *BatchCond { return &BatchCond{Type: "and", Conds: conds} }

// Or holds if any condition holds.
func Or(conds ...*BatchCond) *BatchCond { return &BatchCond{Type: "or", Conds: conds} }

// Chain returns a batch in which every statement runs only if the one before
// it succeeded, so the first failure skips the rest.
func Chain(stmts ...Statement) Batch {
	var b Batch
	for i, st := range stmts {
		var cond *BatchCond
		if i > 0 {
			cond = StepOK(i - 1)
		}
		b.Add(cond, st)
	}
	return b
}

// Add appends a step and returns its index.
func (b *Batch) Add(cond *BatchCond, st Statement) int {
	b.Steps = append(b.Steps, BatchStep{Condition: cond, Stmt: Stmt{SQL: st.SQL, Args: st.Args}})
	return len(b.Steps) - 1
}

func (b Batch) statements() []Statement {
	out := make([]Statement, len(b.Steps))
	for i, st := range b.Steps {
		out[i] = Statement{SQL: st.Stmt.SQL, Args: st.Stmt.Args}
	}
	return out
}

// BatchResult holds per-step outcomes. For a step that was skipped both
// entries are nil.
type BatchResult struct {
	StepResults []*ResultSet   `json:"step_results"`
	StepErrors  []*ResultError `json:"step_errors"`
}

// Ran reports whether step i was executed.
func (r *BatchResult) Ran(i int) bool {
	return r.Result(i) != nil || r.Error(i) != nil
}

// Result returns the result set of step i, or nil.
func (r *BatchResult) Result(i int) *ResultSet {
	if r == nil || i < 0 || i >= len(r.StepResults) {
		return nil
	}
	return r.StepResults[i]
}

// Error returns the error of step i, or nil.
func (r *BatchResult) Error(i int) *ResultError {
	if r == nil || i < 0 || i >= len(r.StepErrors) {
		return nil
	}
	return r.StepErrors[i]
}

func (s Statement) request() Request {
	return Request{Type: RequestExecute, Stmt: &Stmt{SQL: s.SQL, Args: s.Args}}
}
