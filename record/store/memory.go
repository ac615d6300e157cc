// Package store provides an in-memory Gateway for tests and local runs.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory mirrors the SQL stores: same ordering, same natural-key uniqueness,
// same error types.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]record.Record
	natural map[naturalKey]int64
	units   map[string]units.Unit
	nextID  int64

	// Now stamps created_at. Defaults to time.Now.
	Now func() time.Time
}

type naturalKey struct {
	UnitCode      string
	ReceptionDate string
}

var (
	_ record.Gateway = (*Memory)(nil)
	_ units.Store    = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[int64]record.Record),
		natural: make(map[naturalKey]int64),
		units:   make(map[string]units.Unit),
		Now:     time.Now,
	}
}

func keyOf(r record.Record) naturalKey {
	return naturalKey{UnitCode: r.UnitCode, ReceptionDate: r.ReceptionDate.String()}
}

// Insert adds a record with the next ID.
func (m *Memory) Insert(_ context.Context, rec record.Record) (int64, error) {
	rec.UnitCode = normalize.Code(rec.UnitCode)
	if err := rec.CheckInsert(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(rec)
	if existing, ok := m.natural[k]; ok {
		return 0, &record.ConflictError{
			Constraint: record.NaturalKeyConstraint,
			Err:        duplicateError{id: existing},
		}
	}

	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = m.Now().UTC()
	m.records[rec.ID] = rec
	m.natural[k] = rec.ID
	return rec.ID, nil
}

// Update applies cs to an existing record.
func (m *Memory) Update(_ context.Context, id int64, cs record.Changeset) error {
	if err := cs.Check(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return &record.NotFoundError{ID: id}
	}
	cs.Apply(&rec)
	m.records[id] = rec
	return nil
}

func (m *Memory) FetchHistory(ctx context.Context, unitCode string) ([]record.Record, error) {
	return m.Search(ctx, record.SearchFilter{UnitCode: normalize.Code(unitCode)}, -1)
}

func (m *Memory) FetchLatest(ctx context.Context, unitCode string) (*record.Record, error) {
	recs, err := m.FetchHistory(ctx, unitCode)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Search filters, orders and truncates. A negative limit means no limit.
func (m *Memory) Search(_ context.Context, f record.SearchFilter, limit int) ([]record.Record, error) {
	if limit == 0 {
		limit = record.DefaultSearchLimit
	}
	f.UnitCode = normalize.Code(f.UnitCode)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []record.Record
	for _, rec := range m.records {
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	// Map iteration is random; fix the order before the stable history sort.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	record.SortHistory(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// UNITS
// =============================================================================

func (m *Memory) SaveUnit(_ context.Context, u units.Unit) error {
	u = u.Normalized()
	if u.Code == "" {
		return &record.ValidationError{Field: "codigo", Reason: "required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.Code] = u
	return nil
}

func (m *Memory) ListUnits(_ context.Context) ([]units.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]units.Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type duplicateError struct {
	id int64
}

func (e duplicateError) Error() string {
	return "natural key (id_ue, fecha_recepcion) already used by record " + normalize.String(e.id)
}
