/*
store.go - Persistence contract for IT/PEI history

PURPOSE:
  Defines the interface between the reconciler and the relational store.
  SQLite, Postgres and the in-memory store all implement Gateway with the
  same ordering, validation and error semantics.

ORDERING:
  History is always returned newest first:
    fecha_recepcion DESC NULLS LAST, created_at DESC

WRITE DISCIPLINE:
  - Insert and Update each run in one short transaction
  - The unique index on (id_ue, fecha_recepcion) is the only guard against
    two sessions inserting the same natural key; the loser gets ErrConflict
  - No Delete method exists

IMPLEMENTATIONS:
  - store/sqlstore/store.go: database/sql implementation (SQLite, Postgres)
  - record/store/memory.go: In-memory implementation for tests and dev

SEE ALSO:
  - errors.go: Error taxonomy returned by every implementation
  - reconcile/reconciler.go: The only writer
*/
package record

import (
	"context"
	"sort"
)

// DefaultSearchLimit caps Search when the caller passes limit <= 0.
const DefaultSearchLimit = 500

// NaturalKeyConstraint names the UNIQUE (id_ue, fecha_recepcion) index.
const NaturalKeyConstraint = "ux_it_pei_historial_natural"

// Gateway is the History Store Gateway.
type Gateway interface {
	// FetchHistory returns every record of a unit, newest first.
	// unitCode is normalized before filtering.
	FetchHistory(ctx context.Context, unitCode string) ([]Record, error)

	// FetchLatest returns the first record of FetchHistory, or nil.
	FetchLatest(ctx context.Context, unitCode string) (*Record, error)

	// Insert persists a new record and returns its store-assigned ID.
	Insert(ctx context.Context, rec Record) (int64, error)

	// Update writes only the columns present in cs.
	Update(ctx context.Context, id int64, cs Changeset) error

	// Search returns at most limit records matching f, newest first.
	Search(ctx context.Context, f SearchFilter, limit int) ([]Record, error)
}

// SearchFilter is a sparse set of predicates; zero fields are ignored.
type SearchFilter struct {
	UnitCode     string
	Status       Status
	PlanType     PlanType
	ReceivedFrom Date
	ReceivedTo   Date
}

// Matches applies the filter in memory.
func (f SearchFilter) Matches(r Record) bool {
	if f.UnitCode != "" && r.UnitCode != f.UnitCode {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.PlanType != "" && r.PlanType != f.PlanType {
		return false
	}
	if !f.ReceivedFrom.IsZero() && (r.ReceptionDate.IsZero() || r.ReceptionDate.Before(f.ReceivedFrom)) {
		return false
	}
	if !f.ReceivedTo.IsZero() && (r.ReceptionDate.IsZero() || r.ReceptionDate.After(f.ReceivedTo)) {
		return false
	}
	return true
}

// SortHistory orders records newest first: reception date descending with
// absent dates last, then creation time descending.
func SortHistory(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		switch {
		case a.ReceptionDate.IsZero() != b.ReceptionDate.IsZero():
			return b.ReceptionDate.IsZero()
		case !a.ReceptionDate.Equal(b.ReceptionDate):
			return a.ReceptionDate.After(b.ReceptionDate)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}
