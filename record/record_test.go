package record_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/record"
)

// =============================================================================
// PERIOD AND ISSUE RULES
// =============================================================================

func TestCheckPeriod(t *testing.T) {
	assert.NoError(t, record.CheckPeriod("2025-2027"))
	assert.NoError(t, record.CheckPeriod(""))

	err := record.CheckPeriod("25-27")
	require.Error(t, err)
	assert.True(t, record.IsValidation(err))

	assert.Error(t, record.CheckPeriod("2025-2027 "))
	assert.Error(t, record.CheckPeriod("2025/2027"))
}

func TestCheckIssue_EmitidoNeedsReportFields(t *testing.T) {
	form := record.DefaultForm()
	form.Status = record.StatusIssued
	form.FileRef = "EXP-001"
	form.ReportDate = record.NewDate(2024, 2, 1)

	err := form.CheckIssue()
	require.Error(t, err)

	var verrs record.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{record.ColReportNumber}, verrs.Fields())

	form.ReportNumber = "IT-12-2024"
	assert.NoError(t, form.CheckIssue())
}

func TestCheckIssue_InProcessNeedsNothing(t *testing.T) {
	assert.NoError(t, record.DefaultForm().CheckIssue())
}

func TestCheckChoices(t *testing.T) {
	assert.NoError(t, record.DefaultForm().CheckChoices())

	form := record.DefaultForm()
	form.Status = "Archivado"
	form.RevisionCount = -1
	var verrs record.ValidationErrors
	require.True(t, errors.As(form.CheckChoices(), &verrs))
	assert.ElementsMatch(t, []string{record.ColStatus, record.ColRevisionCount}, verrs.Fields())
}

func TestCheckArticulation(t *testing.T) {
	opts := []string{"PEDN 2050", "PDRC"}
	assert.NoError(t, record.CheckArticulation("PDRC", opts))
	assert.Error(t, record.CheckArticulation("PESEM vigente", opts))
	assert.Error(t, record.CheckArticulation("", opts))
	assert.NoError(t, record.CheckArticulation("", nil))
	assert.Error(t, record.CheckArticulation("PDRC", nil))
}

// =============================================================================
// CHANGESETS
// =============================================================================

func TestChangeset_RejectsFrozenAndUnknownColumns(t *testing.T) {
	for _, col := range record.FrozenColumns {
		err := record.Changeset{col: "x"}.Check()
		assert.True(t, record.IsValidation(err), "column %s", col)
	}
	assert.Error(t, record.Changeset{record.ColUnitCode: "99"}.Check())
	assert.Error(t, record.Changeset{}.Check())
	assert.NoError(t, record.Changeset{record.ColStatus: record.StatusIssued}.Check())
}

func TestChangeset_Apply(t *testing.T) {
	rec := record.Record{ID: 1, Status: record.StatusInProcess, RevisionCount: 1}
	record.Changeset{
		record.ColStatus:        record.StatusIssued,
		record.ColRevisionCount: 3,
		record.ColReportDate:    record.NewDate(2024, 3, 5),
		record.ColLetterDate:    "2024-03-06",
		record.ColComment:       "  listo  ",
	}.Apply(&rec)

	assert.Equal(t, record.StatusIssued, rec.Status)
	assert.Equal(t, 3, rec.RevisionCount)
	assert.Equal(t, "2024-03-05", rec.ReportDate.String())
	assert.Equal(t, "2024-03-06", rec.LetterDate.String())
	assert.Equal(t, "listo", rec.Comment)
}

func TestCheckInsert(t *testing.T) {
	var verrs record.ValidationErrors
	require.True(t, errors.As(record.Record{}.CheckInsert(), &verrs))
	assert.Equal(t, []string{record.ColUnitCode, record.ColReceptionDate}, verrs.Fields())

	ok := record.Record{UnitCode: "23", ReceptionDate: record.NewDate(2024, 1, 10)}
	assert.NoError(t, ok.CheckInsert())
}

// =============================================================================
// ORDERING AND FILTERS
// =============================================================================

func TestSortHistory_NullsLastThenCreatedDesc(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []record.Record{
		{ID: 1, CreatedAt: base},
		{ID: 2, ReceptionDate: record.NewDate(2024, 1, 10), CreatedAt: base},
		{ID: 3, ReceptionDate: record.NewDate(2024, 3, 1), CreatedAt: base},
		{ID: 4, ReceptionDate: record.NewDate(2024, 1, 10), CreatedAt: base.Add(time.Hour)},
	}
	record.SortHistory(recs)

	ids := []int64{}
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, ids)
}

func TestSearchFilter_Matches(t *testing.T) {
	rec := record.Record{UnitCode: "23", Status: record.StatusIssued, PlanType: record.PlanUpdated, ReceptionDate: record.NewDate(2024, 6, 1)}

	assert.True(t, record.SearchFilter{}.Matches(rec))
	assert.True(t, record.SearchFilter{UnitCode: "23", ReceivedFrom: record.NewDate(2024, 6, 1), ReceivedTo: record.NewDate(2024, 6, 30)}.Matches(rec))
	assert.False(t, record.SearchFilter{Status: record.StatusInProcess}.Matches(rec))
	assert.False(t, record.SearchFilter{ReceivedTo: record.NewDate(2024, 5, 31)}.Matches(rec))
	assert.False(t, record.SearchFilter{ReceivedFrom: record.NewDate(2024, 1, 1)}.Matches(record.Record{}))
}

// =============================================================================
// DATES
// =============================================================================

func TestDate_JSONAndSQL(t *testing.T) {
	d := record.NewDate(2024, 1, 10)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-10"`, string(b))

	b, err = json.Marshal(record.Date{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(b))

	var back record.Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-10"`), &back))
	assert.True(t, back.Equal(d))
	require.NoError(t, json.Unmarshal([]byte(`null`), &back))
	assert.True(t, back.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"10/01/2024"`), &back))

	v, err := record.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var scanned record.Date
	require.NoError(t, scanned.Scan("2024-01-10 00:00:00+00:00"))
	assert.True(t, scanned.Equal(d))
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())
}

func TestErrors_Unwrap(t *testing.T) {
	driverErr := errors.New("UNIQUE constraint failed")
	conflict := &record.ConflictError{Constraint: "ux_it_pei_historial_natural", Err: driverErr}
	assert.True(t, record.IsConflict(conflict))
	assert.True(t, errors.Is(conflict, driverErr))
	assert.True(t, record.IsClientError(conflict))

	assert.True(t, record.IsNotFound(&record.NotFoundError{ID: 9}))
	assert.False(t, record.IsClientError(&record.NotFoundError{ID: 9}))

	storeErr := &record.StoreError{Op: "insert", Err: driverErr}
	assert.True(t, errors.Is(storeErr, record.ErrStore))
	assert.False(t, record.IsClientError(storeErr))
}
