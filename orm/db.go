// Package orm is the typed table API over a libSQL server: entity
// registration, schema migration, queries and writes.
package orm

import (
	"context"
	"log/slog"

	"github.com/satishbabariya/libsql-go/internal/debug"
	migrate "github.com/satishbabariya/libsql-go/migrate/executor"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/compiler"
	"github.com/satishbabariya/libsql-go/query/executor"
	"github.com/satishbabariya/libsql-go/runtime/client"
)

// DB binds a registry of entities to a statement executor.
type DB struct {
	exec     client.Executor
	registry *model.Registry
	executor *executor.Executor
	logger   *slog.Logger
}

type options struct {
	registry   *model.Registry
	logger     *slog.Logger
	clientOpts []client.Option
	cacheSize  int64
	strict     bool
}

// Option configures a DB.
type Option func(*options)

// WithRegistry uses r instead of a fresh registry.
func WithRegistry(r *model.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sets the logger of the DB and every component it creates.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClientOptions passes options to the client created by Open.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithCacheSize bounds the compiler's join layout cache.
func WithCacheSize(n int64) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithStrictDecoding makes cell decoding failures fail the query instead of
// leaving the field at its zero value.
func WithStrictDecoding() Option {
	return func(o *options) { o.strict = true }
}

// Open connects to the server at url. No request is made until the first
// query.
func Open(url, token string, opts ...Option) (*DB, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := append([]client.Option{client.WithLogger(o.logger)}, o.clientOpts...)
	c, err := client.New(url, token, clientOpts...)
	if err != nil {
		return nil, err
	}
	return New(c, opts...)
}

// New creates a DB running statements on exec.
func New(exec client.Executor, opts ...Option) (*DB, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = model.NewRegistry()
	}

	compOpts := []compiler.Option{compiler.WithLogger(o.logger)}
	if o.cacheSize > 0 {
		compOpts = append(compOpts, compiler.WithCacheSize(o.cacheSize))
	}
	comp, err := compiler.New(o.registry, compOpts...)
	if err != nil {
		return nil, err
	}
	m := executor.NewMaterializer(o.logger)
	m.Strict = o.strict

	return &DB{
		exec:     exec,
		registry: o.registry,
		executor: executor.NewExecutor(exec, comp, m, o.logger),
		logger:   o.logger,
	}, nil
}

// Registry returns the entity registry.
func (db *DB) Registry() *model.Registry { return db.registry }

// Executor returns the statement executor queries run on.
func (db *DB) Executor() client.Executor { return db.exec }

// Register adds entity types, in order, to the set Migrate synchronizes.
func (db *DB) Register(samples ...any) error {
	return db.registry.Register(samples...)
}

// Migrate synchronizes the tables of every registered entity.
func (db *DB) Migrate(ctx context.Context) (*migrate.Result, error) {
	return migrate.NewMigrator(db.exec, db.registry, db.logger).Apply(ctx)
}

// PlanMigration returns the statements Migrate would run.
func (db *DB) PlanMigration(ctx context.Context) ([]string, error) {
	return migrate.NewMigrator(db.exec, db.registry, db.logger).Plan(ctx)
}

// Transaction runs fn with a DB bound to one session between BEGIN and
// COMMIT. An error or panic from fn rolls the transaction back. The session
// stream is closed afterwards either way.
func (db *DB) Transaction(ctx context.Context, fn func(tx *DB) error) error {
	opener, ok := db.exec.(interface{ NewSession() *client.Session })
	if !ok {
		return ErrNoTransactions
	}

	s := opener.NewSession()
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			debug.Or(db.logger).Warn("failed to close transaction stream", "error", err)
		}
	}()

	return s.Transaction(ctx, func(s *client.Session) error {
		return fn(db.with(s))
	})
}

func (db *DB) with(exec client.Executor) *DB {
	c := *db
	c.exec = exec
	c.executor = db.executor.WithExecutor(exec)
	return &c
}

// Close releases the compiler cache. Transaction-bound copies share it and
// must not be used afterwards.
func (db *DB) Close() {
	db.executor.Compiler().Close()
}
