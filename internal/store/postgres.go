package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/attolytics/attolytics/internal/schema"
)

// Postgres is the bun-backed Store. The underlying pool is bounded; each
// request transaction checks out a single connection for its duration.
type Postgres struct {
	db *bun.DB
}

// Open creates a Postgres store over a bounded connection pool. It does not
// dial eagerly; the first statement does.
func Open(dsn string, maxOpenConns, maxIdleConns int) *Postgres {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	db := bun.NewDB(sqldb, pgdialect.New())
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	return &Postgres{db: db}
}

// Materialize issues each table's CREATE TABLE IF NOT EXISTS statement.
func (p *Postgres) Materialize(ctx context.Context, s *schema.Schema) error {
	for name, table := range s.Tables {
		if _, err := p.db.ExecContext(ctx, table.DDL()); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
		log.Debug().Str("table", name).Msg("table materialized")
	}
	return nil
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, w RowWriter) error) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txWriter{tx: tx})
	})
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type txWriter struct {
	tx bun.Tx
}

// InsertRow appends one row insert to the transaction. Values are bound as
// typed arguments by the driver, never formatted into the SQL text.
func (w *txWriter) InsertRow(ctx context.Context, table string, values map[string]any) error {
	_, err := w.tx.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(table)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}
