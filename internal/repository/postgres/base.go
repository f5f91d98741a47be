package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/agenda-api/internal/repository"
	apperrors "github.com/jwalitptl/agenda-api/pkg/errors"
)

type txKey struct{}

// querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// q returns the transaction carried by ctx, or the pool.
func (r BaseRepository) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

type txManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) repository.TxManager {
	return &txManager{db: db}
}

// RunInTx executes fn within a read-committed transaction. A transaction
// already present in ctx is reused.
func (m *txManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = classify(fmt.Errorf("failed to commit transaction: %w", cerr))
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

// SQLSTATE codes mapped to domain errors.
const (
	pqUniqueViolation     = "23505"
	pqCheckViolation      = "23514"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

// classify maps driver errors onto the application error taxonomy.
// AppErrors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return apperrors.Conflict("record already exists", err)
		case pqCheckViolation, pqInvalidText:
			return apperrors.Validation("invalid value", err)
		case pqForeignKeyViolation:
			return apperrors.NotFound("referenced record", err)
		}
	}
	return apperrors.TransientStorage(err)
}

// notFoundOr maps sql.ErrNoRows to NotFound and classifies everything else.
func notFoundOr(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return classify(err)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOne(result rowsAffected, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
