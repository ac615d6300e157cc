/*
Package units holds the executing-unit (UE) reference data.

PURPOSE:
  Every IT/PEI record belongs to one executing unit. Units are immutable
  reference data: code, name, sector, government level (NG) and the
  institutional responsible party. This package indexes them by normalized
  code and answers the lookups the form needs: units per responsible party,
  code/name search, and the articulation options of a government level.

STORAGE:
  Units are persisted in table unidades_ejecutoras by the SQL stores and kept
  in memory by record/store. Directory is a read-only snapshot built from
  Store.ListUnits.

SEE ALSO:
  - articulation.go: Options per government level
  - api/handlers.go: /api/units endpoints
*/
package units

import (
	"context"
	"sort"
	"strings"

	"github.com/ceplan/itpei/normalize"
)

// Unit is one executing unit.
type Unit struct {
	Code        string
	Name        string
	Sector      string
	Level       string
	Responsible string
}

// Normalized returns u with its code canonicalized and fields trimmed.
func (u Unit) Normalized() Unit {
	return Unit{
		Code:        normalize.Code(u.Code),
		Name:        normalize.String(u.Name),
		Sector:      normalize.String(u.Sector),
		Level:       normalize.String(u.Level),
		Responsible: normalize.String(u.Responsible),
	}
}

// Label is the "code - name" form used in pickers.
func (u Unit) Label() string {
	return u.Code + " - " + u.Name
}

// Store persists units.
type Store interface {
	SaveUnit(ctx context.Context, u Unit) error
	ListUnits(ctx context.Context) ([]Unit, error)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is an immutable index of units.
type Directory struct {
	byCode map[string]Unit
	all    []Unit
}

// NewDirectory indexes units by normalized code. Later duplicates win.
func NewDirectory(list []Unit) *Directory {
	d := &Directory{byCode: make(map[string]Unit, len(list))}
	for _, u := range list {
		u = u.Normalized()
		if u.Code == "" {
			continue
		}
		d.byCode[u.Code] = u
	}
	d.all = make([]Unit, 0, len(d.byCode))
	for _, u := range d.byCode {
		d.all = append(d.all, u)
	}
	sort.Slice(d.all, func(i, j int) bool { return d.all[i].Code < d.all[j].Code })
	return d
}

// Load builds a directory from a store.
func Load(ctx context.Context, s Store) (*Directory, error) {
	list, err := s.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	return NewDirectory(list), nil
}

// Lookup finds a unit by any representation of its code.
func (d *Directory) Lookup(code any) (Unit, bool) {
	u, ok := d.byCode[normalize.Code(code)]
	return u, ok
}

// All returns every unit ordered by code.
func (d *Directory) All() []Unit {
	return append([]Unit(nil), d.all...)
}

func (d *Directory) Len() int {
	return len(d.all)
}

// Responsibles lists the distinct non-empty responsible parties, sorted.
func (d *Directory) Responsibles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range d.all {
		if u.Responsible != "" && !seen[u.Responsible] {
			seen[u.Responsible] = true
			out = append(out, u.Responsible)
		}
	}
	sort.Strings(out)
	return out
}

// ByResponsible returns the units assigned to one responsible party.
func (d *Directory) ByResponsible(name string) []Unit {
	name = normalize.String(name)
	var out []Unit
	for _, u := range d.all {
		if u.Responsible == name {
			out = append(out, u)
		}
	}
	return out
}

// Search matches query against code and name, ignoring case and accents.
// An empty query returns in unchanged.
func Search(in []Unit, query string) []Unit {
	q := normalize.Fold(normalize.Key(query))
	if q == "" {
		return in
	}
	var out []Unit
	for _, u := range in {
		if strings.Contains(normalize.Fold(normalize.Key(u.Label())), q) {
			out = append(out, u)
		}
	}
	return out
}
