// Package postgres provides the Postgres backend of the History Store Gateway,
// using pgx through database/sql so the queries in sqlstore are shared with SQLite.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/ceplan/itpei/store/sqlstore"
)

const (
	driverName = "pgx"

	// DefaultDSN is used when the configuration leaves the DSN empty.
	DefaultDSN = "postgres://localhost/itpei?sslmode=disable"

	uniqueViolation = "23505"
)

var sqlOpen = sql.Open

// New opens a pool on dsn, pings it and applies the schema.
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, Dialect{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect is the Postgres flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqlstore.RebindDollar(query) }

func (Dialect) Schema() []string {
	return []string{`
	CREATE TABLE IF NOT EXISTS it_pei_historial (
		id BIGSERIAL PRIMARY KEY,
		id_ue TEXT NOT NULL,
		anio INTEGER,
		ng1 TEXT,
		ng2 TEXT,
		fecha_recepcion DATE,
		periodo_pei TEXT,
		vigencia TEXT,
		tipo_pei TEXT,
		estado TEXT,
		responsable_institucional TEXT,
		cantidad_revisiones INTEGER,
		fecha_derivacion DATE,
		etapas_revision TEXT,
		comentario_adicional_emisor_it TEXT,
		articulacion TEXT,
		expediente TEXT,
		fecha_it DATE,
		numero_it TEXT,
		fecha_oficio DATE,
		numero_oficio TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by TEXT
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_it_pei_historial_natural
		ON it_pei_historial(id_ue, fecha_recepcion)`,
		`CREATE INDEX IF NOT EXISTS idx_it_pei_historial_ue
		ON it_pei_historial(id_ue, fecha_recepcion DESC NULLS LAST, created_at DESC)`,
		`
	CREATE TABLE IF NOT EXISTS unidades_ejecutoras (
		codigo TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		sector TEXT,
		ng TEXT,
		responsable_institucional TEXT
	)`,
	}
}

// UniqueViolation recognises SQLSTATE 23505 and reports the index name.
func (Dialect) UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		if pgErr.Code != uniqueViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}
	if err != nil && strings.Contains(err.Error(), "SQLSTATE "+uniqueViolation) {
		return "", true
	}
	return "", false
}
