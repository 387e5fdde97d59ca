// Package executor applies schema plans to a database.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/migrate/diff"
	"github.com/satishbabariya/libsql-go/migrate/introspect"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/runtime/client"
)

var (
	// ErrMigrationFailed wraps the failure of an applied plan.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrNoBatches is returned by Apply when the executor cannot run
	// conditional batches.
	ErrNoBatches = errors.New("executor does not support conditional batches")
)

// Migrator synchronizes the tables of registered entities.
type Migrator struct {
	exec         client.Executor
	registry     *model.Registry
	introspector *introspect.Introspector
	synchronizer *diff.Synchronizer
	logger       *slog.Logger
}

// Result describes an applied migration.
type Result struct {
	Tables     []*diff.TablePlan
	Statements []string
	Duration   time.Duration
}

// NewMigrator creates a migrator for the entities registered in registry.
func NewMigrator(exec client.Executor, registry *model.Registry, logger *slog.Logger) *Migrator {
	return &Migrator{
		exec:         exec,
		registry:     registry,
		introspector: introspect.New(exec, logger),
		synchronizer: diff.NewSynchronizer(registry),
		logger:       logger,
	}
}

// PlanTables diffs every registered entity, in registration order, against
// a freshly read snapshot of its table.
func (m *Migrator) PlanTables(ctx context.Context) ([]*diff.TablePlan, error) {
	var plans []*diff.TablePlan
	for _, e := range m.registry.Entities() {
		snap, err := m.introspector.ReadTable(ctx, e.Table)
		if err != nil {
			return nil, err
		}
		plan, err := m.synchronizer.Plan(e, snap)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Plan returns the concatenated statements of every table plan.
func (m *Migrator) Plan(ctx context.Context) ([]string, error) {
	plans, err := m.PlanTables(ctx)
	if err != nil {
		return nil, err
	}
	return statements(plans), nil
}

// Apply plans and runs the migration as one conditional batch. Each
// statement runs only if the previous one succeeded, so the first failure
// skips the rest; an open rebuild transaction is then rolled back and
// foreign key enforcement restored. Tables whose plans completed before the
// failure stay migrated. The returned error names the failed statement.
func (m *Migrator) Apply(ctx context.Context) (*Result, error) {
	start := time.Now()
	plans, err := m.PlanTables(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Tables: plans, Statements: statements(plans)}
	if len(result.Statements) == 0 {
		debug.Or(m.logger).Debug("schema up to date", "tables", len(plans))
		return result, nil
	}

	stmts := make([]client.Statement, len(result.Statements))
	for i, sql := range result.Statements {
		stmts[i] = client.Statement{SQL: sql}
	}
	if err := m.run(ctx, stmts); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	debug.Or(m.logger).Info("migration applied", "tables", len(plans), "statements", len(stmts), "duration", result.Duration)
	return result, nil
}

func (m *Migrator) run(ctx context.Context, stmts []client.Statement) error {
	b, ok := m.exec.(client.Batcher)
	if !ok {
		return wrap(ErrNoBatches)
	}

	batch := client.Chain(stmts...)
	incomplete := client.Not(client.StepOK(len(stmts) - 1))
	batch.Add(incomplete, client.Statement{SQL: "ROLLBACK"})
	batch.Add(incomplete, client.Statement{SQL: "PRAGMA foreign_keys=ON"})

	_, err := b.Batch(ctx, batch)
	var qe *client.QueryError
	if errors.As(err, &qe) {
		debug.Or(m.logger).Error("migration statement failed", "index", qe.Index, "sql", qe.SQL, "message", qe.Message)
	}
	return wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
}

func statements(plans []*diff.TablePlan) []string {
	var out []string
	for _, p := range plans {
		out = append(out, p.Statements...)
	}
	return out
}
