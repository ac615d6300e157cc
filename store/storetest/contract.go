// Package storetest holds the behaviour every record.Gateway must share,
// run against the memory, SQLite and Postgres backends.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// Backend is what a gateway test needs: history plus unit storage.
type Backend interface {
	record.Gateway
	units.Store
}

// Run executes the shared gateway cases. open must return an empty backend.
func Run(t *testing.T, open func(t *testing.T) Backend) {
	t.Helper()

	t.Run("insert then history", func(t *testing.T) { insertThenHistory(t, open(t)) })
	t.Run("natural key conflict", func(t *testing.T) { naturalKeyConflict(t, open(t)) })
	t.Run("history order", func(t *testing.T) { historyOrder(t, open(t)) })
	t.Run("update rules", func(t *testing.T) { updateRules(t, open(t)) })
	t.Run("search filters", func(t *testing.T) { searchFilters(t, open(t)) })
	t.Run("units upsert", func(t *testing.T) { unitsUpsert(t, open(t)) })
}

func sample(code string, y, m, d int) record.Record {
	form := record.DefaultForm()
	form.ReceptionDate = record.NewDate(y, time.Month(m), d)
	form.Period = "2025-2027"
	form.Articulation = "PDRC"

	rec := record.Record{UnitCode: code, Year: y, NG1: "Gobierno regional", Responsible: "Ana"}
	form.Apply(&rec)
	return rec
}

func insertThenHistory(t *testing.T, g Backend) {
	ctx := context.Background()

	// GIVEN: An empty store and a complete record
	rec := sample("23.0", 2024, 1, 10)
	rec.DerivationDate = record.NewDate(2024, 1, 12)

	// WHEN: It is inserted
	id, err := g.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	// THEN: History returns it with normalized code and stamped created_at
	hist, err := g.FetchHistory(ctx, "23")
	require.NoError(t, err)
	require.Len(t, hist, 1)

	got := hist[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "23", got.UnitCode)
	assert.Equal(t, 2024, got.Year)
	assert.Equal(t, "Gobierno regional", got.NG1)
	assert.Equal(t, "", got.NG2)
	assert.Equal(t, "2024-01-10", got.ReceptionDate.String())
	assert.Equal(t, "2024-01-12", got.DerivationDate.String())
	assert.True(t, got.ReportDate.IsZero())
	assert.Equal(t, "2025-2027", got.Period)
	assert.Equal(t, record.PlanFormulated, got.PlanType)
	assert.Equal(t, record.StatusInProcess, got.Status)
	assert.Equal(t, record.ValidityYes, got.Validity)
	assert.Equal(t, record.StageReportIssued, got.ReviewStage)
	assert.Equal(t, "Ana", got.Responsible)
	assert.False(t, got.CreatedAt.IsZero())

	latest, err := g.FetchLatest(ctx, "23")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.ID)

	none, err := g.FetchLatest(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = g.Insert(ctx, record.Record{UnitCode: "23"})
	assert.True(t, record.IsValidation(err), "reception date is required")
}

func naturalKeyConflict(t *testing.T, g Backend) {
	ctx := context.Background()
	rec := sample("23", 2024, 1, 10)

	// WHEN: Two sessions insert the same (id_ue, fecha_recepcion) at once
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Insert(ctx, rec)
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one wins, the other sees a conflict naming the key
	var conflicts []error
	for _, err := range errs {
		if err != nil {
			conflicts = append(conflicts, err)
		}
	}
	require.Len(t, conflicts, 1)
	assert.True(t, record.IsConflict(conflicts[0]))
	assert.True(t, record.IsClientError(conflicts[0]))

	var ce *record.ConflictError
	require.ErrorAs(t, conflicts[0], &ce)
	assert.Equal(t, record.NaturalKeyConstraint, ce.Constraint)

	hist, err := g.FetchHistory(ctx, "23")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func historyOrder(t *testing.T, g Backend) {
	ctx := context.Background()
	for _, day := range []int{5, 1, 3} {
		_, err := g.Insert(ctx, sample("10", 2024, 3, day))
		require.NoError(t, err)
	}
	_, err := g.Insert(ctx, sample("11", 2024, 3, 9))
	require.NoError(t, err)

	hist, err := g.FetchHistory(ctx, "10")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "2024-03-05", hist[0].ReceptionDate.String())
	assert.Equal(t, "2024-03-03", hist[1].ReceptionDate.String())
	assert.Equal(t, "2024-03-01", hist[2].ReceptionDate.String())
}

func updateRules(t *testing.T, g Backend) {
	ctx := context.Background()
	id, err := g.Insert(ctx, sample("23", 2024, 1, 10))
	require.NoError(t, err)

	// Unknown id
	err = g.Update(ctx, id+1000, record.Changeset{record.ColStatus: record.StatusIssued})
	assert.True(t, record.IsNotFound(err))

	// Frozen column
	err = g.Update(ctx, id, record.Changeset{record.ColReceptionDate: record.NewDate(2024, 2, 1)})
	assert.True(t, record.IsValidation(err))

	// Empty changeset
	err = g.Update(ctx, id, record.Changeset{})
	assert.True(t, record.IsValidation(err))

	// Partial update touches only the listed columns
	err = g.Update(ctx, id, record.Changeset{
		record.ColStatus:        record.StatusIssued,
		record.ColFileRef:       "EXP-1",
		record.ColReportNumber:  "IT-1",
		record.ColReportDate:    record.NewDate(2024, 2, 1),
		record.ColRevisionCount: 2,
	})
	require.NoError(t, err)

	latest, err := g.FetchLatest(ctx, "23")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, record.StatusIssued, latest.Status)
	assert.Equal(t, "EXP-1", latest.FileRef)
	assert.Equal(t, "IT-1", latest.ReportNumber)
	assert.Equal(t, "2024-02-01", latest.ReportDate.String())
	assert.Equal(t, 2, latest.RevisionCount)
	assert.Equal(t, "2024-01-10", latest.ReceptionDate.String())
	assert.Equal(t, "2025-2027", latest.Period)
	assert.Equal(t, "PDRC", latest.Articulation)
}

func searchFilters(t *testing.T, g Backend) {
	ctx := context.Background()
	for day := 1; day <= 4; day++ {
		rec := sample("10", 2024, 4, day)
		if day%2 == 0 {
			rec.Status = record.StatusIssued
			rec.FileRef, rec.ReportNumber = "EXP", "IT"
			rec.ReportDate = record.NewDate(2024, 5, day)
		}
		_, err := g.Insert(ctx, rec)
		require.NoError(t, err)
	}
	other := sample("20", 2024, 4, 2)
	other.PlanType = record.PlanExpanded
	_, err := g.Insert(ctx, other)
	require.NoError(t, err)

	all, err := g.Search(ctx, record.SearchFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	issued, err := g.Search(ctx, record.SearchFilter{Status: record.StatusIssued}, 0)
	require.NoError(t, err)
	assert.Len(t, issued, 2)
	for _, r := range issued {
		assert.Equal(t, record.StatusIssued, r.Status)
	}

	expanded, err := g.Search(ctx, record.SearchFilter{PlanType: record.PlanExpanded}, 0)
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "20", expanded[0].UnitCode)

	ranged, err := g.Search(ctx, record.SearchFilter{
		UnitCode:     "10",
		ReceivedFrom: record.NewDate(2024, 4, 2),
		ReceivedTo:   record.NewDate(2024, 4, 3),
	}, 0)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "2024-04-03", ranged[0].ReceptionDate.String())
	assert.Equal(t, "2024-04-02", ranged[1].ReceptionDate.String())

	limited, err := g.Search(ctx, record.SearchFilter{UnitCode: "10"}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "2024-04-04", limited[0].ReceptionDate.String())
}

func unitsUpsert(t *testing.T, g Backend) {
	ctx := context.Background()
	require.NoError(t, g.SaveUnit(ctx, units.Unit{Code: "23.0", Name: "GR Tacna", Level: units.LevelRegional}))
	require.NoError(t, g.SaveUnit(ctx, units.Unit{Code: "23", Name: "Gobierno Regional de Tacna", Level: units.LevelRegional, Responsible: "Ana"}))
	require.NoError(t, g.SaveUnit(ctx, units.Unit{Code: "5", Name: "Municipalidad de Lima", Level: units.LevelProvincial}))
	assert.True(t, record.IsValidation(g.SaveUnit(ctx, units.Unit{Name: "sin código"})))

	list, err := g.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byCode := map[string]units.Unit{}
	for _, u := range list {
		byCode[u.Code] = u
	}
	assert.Equal(t, "Gobierno Regional de Tacna", byCode["23"].Name)
	assert.Equal(t, "Ana", byCode["23"].Responsible)
	assert.Equal(t, units.LevelProvincial, byCode["5"].Level)
}
