package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// PostgresStore persists transfers as JSONB records with the stage and timestamps broken out for queries.
type PostgresStore struct {
	db *sqlx.DB
}

type transferRow struct {
	ID      string          `db:"id"`
	Record  json.RawMessage `db:"record"`
	Updated time.Time       `db:"updated_at"`
}

// NewPostgresStore connects to url and applies pending migrations.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, st *types.TransferState) error {
	record, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO transfers (id, stage, source_chain, destination_chain, message_hash, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		st.ID, st.Stage, st.Request.SourceChain, st.Request.DestinationChain, st.MessageHash, record, st.Created, st.Updated,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return types.NewTransferError(types.CodeTransferExists, "transfer %s already exists", st.ID)
	}
	return err
}

func (p *PostgresStore) Load(ctx context.Context, id string) (*types.TransferState, error) {
	var row transferRow
	err := p.db.GetContext(ctx, &row, `SELECT id, record, updated_at FROM transfers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return row.decode()
}

func (p *PostgresStore) Save(ctx context.Context, st *types.TransferState) error {
	record, err := json.Marshal(st)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE transfers SET stage = $2, message_hash = $3, record = $4, updated_at = $5
		WHERE id = $1`,
		st.ID, st.Stage, st.MessageHash, record, st.Updated,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(st.ID)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*types.TransferState, error) {
	var rows []transferRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT id, record, updated_at FROM transfers ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	out := make([]*types.TransferState, 0, len(rows))
	for _, row := range rows {
		st, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (p *PostgresStore) DeleteTerminal(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids, `
		DELETE FROM transfers WHERE stage IN ($1, $2) AND updated_at < $3
		RETURNING id`,
		types.StageDone, types.StageFailed, cutoff,
	)
	return ids, err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (r transferRow) decode() (*types.TransferState, error) {
	var st types.TransferState
	if err := json.Unmarshal(r.Record, &st); err != nil {
		return nil, fmt.Errorf("corrupt record for transfer %s: %w", r.ID, err)
	}
	return &st, nil
}
