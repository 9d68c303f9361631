package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is a unit of work spanning flight and booking rows. It is passed explicitly
// through the ledger and repositories; nothing reads it from the context.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// CASResult is the outcome of a conditioned write.
type CASResult int

const (
	CASApplied CASResult = iota
	CASConflict
	CASNotFound
)

func (r CASResult) String() string {
	switch r {
	case CASApplied:
		return "applied"
	case CASConflict:
		return "conflict"
	case CASNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// WithinTx runs fn inside a transaction. Any error from fn rolls everything back;
// commit failures caused by a lost race surface as domain.ErrConcurrentUpdate.
func WithinTx(ctx context.Context, m TxManager, fn func(tx Tx) error) (err error) {
	tx, err := m.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type PGTxManager struct {
	db *pgxpool.Pool
}

func NewTxManager(db *pgxpool.Pool) *PGTxManager {
	return &PGTxManager{db: db}
}

// Begin opens a READ COMMITTED transaction: a losing "UPDATE ... WHERE version=$n"
// waits for the winner, re-evaluates and matches zero rows.
func (m *PGTxManager) Begin(ctx context.Context) (Tx, error) {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &PGTx{tx: tx}, nil
}

type PGTx struct {
	tx pgx.Tx
}

func (t *PGTx) Commit(ctx context.Context) error {
	return classify(t.tx.Commit(ctx))
}

func (t *PGTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func pgxTx(tx Tx) (pgx.Tx, error) {
	t, ok := tx.(*PGTx)
	if !ok || t == nil {
		return nil, fmt.Errorf("repository: unsupported tx %T", tx)
	}
	return t.tx, nil
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps PostgreSQL concurrency failures onto domain.ErrConcurrentUpdate.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, pgErr.Message)
		}
	}
	return err
}

var _ TxManager = (*PGTxManager)(nil)
