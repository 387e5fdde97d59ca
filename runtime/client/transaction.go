package client

import (
	"context"
	"fmt"
)

// TransactionFunc runs inside a transaction on s.
type TransactionFunc func(s *Session) error

// Begin opens a transaction on the session stream.
func (s *Session) Begin(ctx context.Context) error {
	_, err := s.Execute(ctx, Statement{SQL: "BEGIN TRANSACTION"})
	return err
}

// Commit commits the open transaction.
func (s *Session) Commit(ctx context.Context) error {
	_, err := s.Execute(ctx, Statement{SQL: "COMMIT"})
	return err
}

// Rollback aborts the open transaction.
func (s *Session) Rollback(ctx context.Context) error {
	_, err := s.Execute(ctx, Statement{SQL: "ROLLBACK"})
	return err
}

// Transaction runs fn between Begin and Commit. If fn returns an error or
// panics the transaction is rolled back.
func (s *Session) Transaction(ctx context.Context, fn TransactionFunc) error {
	if err := s.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(s); err != nil {
		if rbErr := s.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := s.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
