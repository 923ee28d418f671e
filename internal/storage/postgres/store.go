// Package postgres implements the coordinator's storage on PostgreSQL.
//
// Transactions run at READ COMMITTED with explicit row locks. The schema's
// CHECK constraints, the exclusion constraint on exclusive racks and the
// deferred capacity trigger on additive racks back the application checks,
// and their violations are mapped to the matching domain error kinds.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

var _ app.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type txKey struct{}

// WithTx runs fn in a transaction. A ctx that already carries one is reused,
// so nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	// Deferred constraints fire here.
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit")
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}

func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeExclusionViolation   = "23P01"
	codeInvalidText          = "22P02"
)

// mapError turns a driver error into a domain error. Unknown errors are
// wrapped with op and stay internal.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return &domain.Error{Kind: domain.ErrConflict, Op: op, Msg: "concurrent update", Err: err}
	case codeExclusionViolation:
		return &domain.Error{Kind: domain.ErrOverlapConflict, Op: op, Msg: "exclusive rack already reserved for an overlapping period", Err: err}
	case codeUniqueViolation:
		return &domain.Error{Kind: domain.ErrInvalidState, Op: op, Msg: "already exists: " + pgErr.ConstraintName, Err: err}
	case codeForeignKeyViolation:
		return &domain.Error{Kind: domain.ErrNotFound, Op: op, Msg: "referenced row missing: " + pgErr.ConstraintName, Err: err}
	case codeInvalidText:
		return &domain.Error{Kind: domain.ErrInvalidInput, Op: op, Msg: pgErr.Message, Err: err}
	case codeCheckViolation:
		switch pgErr.ConstraintName {
		case "racks_occupied_within_capacity", "rack_reservations_additive_capacity":
			return &domain.Error{Kind: domain.ErrCapacityExceeded, Op: op, Msg: pgErr.Message, Err: err}
		case "racks_occupied_nonnegative":
			return &domain.Error{Kind: domain.ErrDataIntegrity, Op: op, Msg: "occupancy would go negative", Err: err}
		}
		return &domain.Error{Kind: domain.ErrInvalidInput, Op: op, Msg: pgErr.Message, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Decimals and JSON documents travel as text with an explicit cast in the
// statement, which keeps their encoding independent of the driver's codecs.
func num(d decimal.Decimal) string { return d.String() }

func nullNum(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func jsonText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Errorf(domain.ErrNotFound, "%s %s not found", what, id)
	}
	return mapError(err, "get "+what)
}
