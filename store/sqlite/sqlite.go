/*
Package sqlite provides the SQLite backend of the History Store Gateway.

PURPOSE:
  Opens a SQLite database with mattn/go-sqlite3, applies the schema and
  hands back a sqlstore.Store. All queries live in sqlstore; this package
  only owns the DDL and the driver-specific error shape.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  The pool is capped at one connection. Writers queue on it, and the
  natural-key UNIQUE index still decides which of two racing inserts wins.
  ":memory:" databases also need this: every new connection would
  otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/itpei.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlstore/store.go: Queries and error mapping
  - store/postgres/postgres.go: Production backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/store/sqlstore"
)

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*sqlstore.Store, error) {
	return Open(context.Background(), dbPath)
}

// Open is New with a context for the migration.
func Open(ctx context.Context, dbPath string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := sqlstore.Open(ctx, db, Dialect{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return query }

func (Dialect) Schema() []string {
	return []string{`
	CREATE TABLE IF NOT EXISTS it_pei_historial (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
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
		created_at TIMESTAMP NOT NULL,
		created_by TEXT
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_it_pei_historial_natural
		ON it_pei_historial(id_ue, fecha_recepcion)`,
		`CREATE INDEX IF NOT EXISTS idx_it_pei_historial_ue
		ON it_pei_historial(id_ue, fecha_recepcion DESC, created_at DESC)`,
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

// UniqueViolation recognises SQLITE_CONSTRAINT_UNIQUE. SQLite does not
// report index names, so the natural key is recognised by its columns.
func (Dialect) UniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
			sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return "", false
		}
		return constraintName(sqliteErr.Error()), true
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return constraintName(err.Error()), true
	}
	return "", false
}

func constraintName(msg string) string {
	if strings.Contains(msg, "it_pei_historial.id_ue") &&
		strings.Contains(msg, "it_pei_historial.fecha_recepcion") {
		return record.NaturalKeyConstraint
	}
	if _, cols, ok := strings.Cut(msg, "constraint failed: "); ok {
		return cols
	}
	return ""
}
