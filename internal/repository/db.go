package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx so repositories
// work both standalone and inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores bundles the repositories the lifecycle engine mutates together.
// Inside TxManager.InTx all of them share one transaction, so a status
// mutation and its audit log entry commit or roll back as a unit.
type Stores struct {
	Incidents   IncidentRepository
	Assignments AssignmentRepository
	StatusLog   StatusLogRepository
	Units       AuthorityUnitRepository
}

// TxManager runs engine mutations atomically.
type TxManager interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

type pgxTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager builds a pgx-backed transaction manager.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgxTxManager{pool: pool}
}

func (m *pgxTxManager) InTx(ctx context.Context, fn func(Stores) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stores := Stores{
		Incidents:   NewIncidentRepository(tx),
		Assignments: NewAssignmentRepository(tx),
		StatusLog:   NewStatusLogRepository(tx),
		Units:       NewAuthorityUnitRepository(tx),
	}
	if err := fn(stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
