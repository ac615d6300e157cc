/*
Package sqlstore implements record.Gateway and units.Store over database/sql.

PURPOSE:
  One implementation of the History Store Gateway shared by SQLite and
  Postgres. Everything dialect-specific (DDL, placeholder style, how a
  unique violation looks) sits behind the Dialect interface; the queries
  themselves are identical.

KEY TABLES:
  it_pei_historial:    Review history, one row per submission
  unidades_ejecutoras: Executing-unit reference data

INDEXES:
  - ux_it_pei_historial_natural: UNIQUE (id_ue, fecha_recepcion). The only
    concurrency guard: two sessions racing to insert the same natural key
    both reach the database, the loser gets record.ErrConflict.
  - idx_it_pei_historial_ue: History lookups per unit (hot path)

TRANSACTIONS:
  Insert and Update each run in their own short transaction that commits
  or rolls back as a unit. Nothing is retried.

ERRORS:
  Driver errors are mapped once, in wrap():
  - unique violation -> *record.ConflictError
  - zero rows updated -> *record.NotFoundError
  - anything else     -> *record.StoreError

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite dialect (mattn/go-sqlite3)
  - store/postgres/postgres.go: Postgres dialect (jackc/pgx)
  - record/store.go: Gateway contract
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// Dialect isolates the SQL differences between backends.
type Dialect interface {
	Name() string

	// Schema returns the DDL statements applied on Open.
	Schema() []string

	// Rebind rewrites ? placeholders into the backend's style.
	Rebind(query string) string

	// UniqueViolation reports whether err is a uniqueness violation and,
	// when the driver says so, which constraint fired.
	UniqueViolation(err error) (constraint string, ok bool)
}

// Store implements record.Gateway and units.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect

	// Now stamps created_at. Defaults to time.Now.
	Now func() time.Time
}

var (
	_ record.Gateway = (*Store)(nil)
	_ units.Store    = (*Store)(nil)
)

// Open applies the dialect's schema to db and returns a ready store.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, dialect: d, Now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s database: %w", d.Name(), err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the backend name ("sqlite", "postgres").
func (s *Store) Dialect() string { return s.dialect.Name() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// =============================================================================
// HISTORY (record.Gateway)
// =============================================================================

const selectColumns = `
	id, id_ue, anio, ng1, ng2, fecha_recepcion, periodo_pei, vigencia, tipo_pei,
	estado, responsable_institucional, cantidad_revisiones, fecha_derivacion,
	etapas_revision, comentario_adicional_emisor_it, articulacion, expediente,
	fecha_it, numero_it, fecha_oficio, numero_oficio, created_at, created_by`

const historyOrder = `ORDER BY fecha_recepcion DESC NULLS LAST, created_at DESC, id DESC`

// insertColumns excludes id, which the database assigns.
var insertColumns = record.Columns[1:]

// FetchHistory returns every record of a unit, newest first.
func (s *Store) FetchHistory(ctx context.Context, unitCode string) ([]record.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM it_pei_historial
		WHERE id_ue = ?
		` + historyOrder

	return s.queryRecords(ctx, "fetch history", query, normalize.Code(unitCode))
}

// FetchLatest returns the most recent record of a unit, or nil.
func (s *Store) FetchLatest(ctx context.Context, unitCode string) (*record.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM it_pei_historial
		WHERE id_ue = ?
		` + historyOrder + `
		LIMIT 1`

	recs, err := s.queryRecords(ctx, "fetch latest", query, normalize.Code(unitCode))
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Insert persists a new record and returns its ID.
func (s *Store) Insert(ctx context.Context, rec record.Record) (int64, error) {
	rec.UnitCode = normalize.Code(rec.UnitCode)
	if err := rec.CheckInsert(); err != nil {
		return 0, err
	}

	values := rec.Values()
	values[record.ColCreatedAt] = s.Now().UTC()

	args := make([]any, len(insertColumns))
	for i, col := range insertColumns {
		args[i] = record.SQLValue(values[col])
	}
	query := fmt.Sprintf(
		`INSERT INTO it_pei_historial (%s) VALUES (%s) RETURNING id`,
		strings.Join(insertColumns, ", "),
		placeholders(len(insertColumns)),
	)

	var id int64
	err := s.withTx(ctx, "insert record", func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update writes only the columns present in cs.
func (s *Store) Update(ctx context.Context, id int64, cs record.Changeset) error {
	if err := cs.Check(); err != nil {
		return err
	}

	cols := cs.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, record.SQLValue(cs[col]))
	}
	args = append(args, id)
	query := `UPDATE it_pei_historial SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	return s.withTx(ctx, "update record", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &record.NotFoundError{ID: id}
		}
		return nil
	})
}

// Search returns at most limit matching records, newest first.
func (s *Store) Search(ctx context.Context, f record.SearchFilter, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = record.DefaultSearchLimit
	}

	var where []string
	var args []any
	if code := normalize.Code(f.UnitCode); code != "" {
		where = append(where, "id_ue = ?")
		args = append(args, code)
	}
	if f.Status != "" {
		where = append(where, "estado = ?")
		args = append(args, string(f.Status))
	}
	if f.PlanType != "" {
		where = append(where, "tipo_pei = ?")
		args = append(args, string(f.PlanType))
	}
	if !f.ReceivedFrom.IsZero() {
		where = append(where, "fecha_recepcion >= ?")
		args = append(args, f.ReceivedFrom.Time)
	}
	if !f.ReceivedTo.IsZero() {
		where = append(where, "fecha_recepcion <= ?")
		args = append(args, f.ReceivedTo.Time)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)

	query := `SELECT ` + selectColumns + `
		FROM it_pei_historial
		` + whereSQL + `
		` + historyOrder + `
		LIMIT ?`

	return s.queryRecords(ctx, "search records", query, args...)
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, s.wrap(op, err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.wrap(op, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(op, err)
	}
	return recs, nil
}

func scanRecord(rows *sql.Rows) (record.Record, error) {
	var (
		r            record.Record
		year         sql.NullInt64
		revisions    sql.NullInt64
		ng1          sql.NullString
		ng2          sql.NullString
		period       sql.NullString
		validity     sql.NullString
		planType     sql.NullString
		status       sql.NullString
		responsible  sql.NullString
		stage        sql.NullString
		comment      sql.NullString
		articulation sql.NullString
		fileRef      sql.NullString
		reportNumber sql.NullString
		letterNumber sql.NullString
		createdAt    sql.NullTime
		createdBy    sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.UnitCode, &year, &ng1, &ng2, &r.ReceptionDate, &period,
		&validity, &planType, &status, &responsible, &revisions,
		&r.DerivationDate, &stage, &comment, &articulation, &fileRef,
		&r.ReportDate, &reportNumber, &r.LetterDate, &letterNumber,
		&createdAt, &createdBy,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Year = int(year.Int64)
	r.RevisionCount = int(revisions.Int64)
	r.NG1 = ng1.String
	r.NG2 = ng2.String
	r.Period = period.String
	r.Validity = record.Validity(validity.String)
	r.PlanType = record.PlanType(planType.String)
	r.Status = record.Status(status.String)
	r.Responsible = responsible.String
	r.ReviewStage = record.ReviewStage(stage.String)
	r.Comment = comment.String
	r.Articulation = articulation.String
	r.FileRef = fileRef.String
	r.ReportNumber = reportNumber.String
	r.LetterNumber = letterNumber.String
	r.CreatedAt = createdAt.Time
	r.CreatedBy = createdBy.String
	return r, nil
}

// =============================================================================
// UNITS (units.Store)
// =============================================================================

// SaveUnit inserts or replaces a unit by code.
func (s *Store) SaveUnit(ctx context.Context, u units.Unit) error {
	u = u.Normalized()
	if u.Code == "" {
		return &record.ValidationError{Field: "codigo", Reason: "required"}
	}

	query := `
		INSERT INTO unidades_ejecutoras (codigo, nombre, sector, ng, responsable_institucional)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(codigo) DO UPDATE SET
			nombre = excluded.nombre,
			sector = excluded.sector,
			ng = excluded.ng,
			responsable_institucional = excluded.responsable_institucional
	`
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		u.Code, u.Name, u.Sector, u.Level, u.Responsible,
	)
	return s.wrap("save unit", err)
}

// ListUnits returns every unit ordered by code.
func (s *Store) ListUnits(ctx context.Context) ([]units.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT codigo, nombre, sector, ng, responsable_institucional FROM unidades_ejecutoras ORDER BY codigo`,
	)
	if err != nil {
		return nil, s.wrap("list units", err)
	}
	defer rows.Close()

	var list []units.Unit
	for rows.Next() {
		var u units.Unit
		var sector, level, responsible sql.NullString
		if err := rows.Scan(&u.Code, &u.Name, &sector, &level, &responsible); err != nil {
			return nil, s.wrap("list units", err)
		}
		u.Sector = sector.String
		u.Level = level.String
		u.Responsible = responsible.String
		list = append(list, u)
	}
	return list, s.wrap("list units", rows.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

// withTx runs fn in one transaction and maps any failure.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return s.wrap(op, err)
	}
	return s.wrap(op, tx.Commit())
}

func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *record.NotFoundError
	if errors.As(err, &notFound) {
		return err
	}
	if constraint, ok := s.dialect.UniqueViolation(err); ok {
		return &record.ConflictError{Constraint: constraint, Err: err}
	}
	return &record.StoreError{Op: op, Err: err}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// RebindDollar rewrites ? placeholders as $1, $2, ... for Postgres.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
