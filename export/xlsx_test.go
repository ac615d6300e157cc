package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ceplan/itpei/export"
	"github.com/ceplan/itpei/mapper"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

func sampleHistory() []record.Record {
	return []record.Record{
		{
			ID: 2, UnitCode: "23", Year: 2024,
			ReceptionDate: record.NewDate(2024, 3, 1), Period: "2025-2027",
			PlanType: record.PlanExpanded, Validity: record.ValidityYes,
			Status: record.StatusIssued, ReviewStage: record.StageReportIssued,
			FileRef: "EXP-2", ReportNumber: "IT-2", ReportDate: record.NewDate(2024, 3, 20),
			Articulation: "PDRC", RevisionCount: 2, Comment: "sin observaciones",
			CreatedAt: time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC), CreatedBy: "ana",
		},
		{
			ID: 1, UnitCode: "23", Year: 2024,
			ReceptionDate: record.NewDate(2024, 1, 10),
			PlanType:      record.PlanFormulated, Validity: record.ValidityNo,
			Status: record.StatusInProcess, ReviewStage: record.StageReviewDNCP,
		},
	}
}

func TestHistory_WritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	unit := units.Unit{Code: "23", Name: "Gobierno Regional de Tacna"}

	require.NoError(t, export.History(&buf, unit, sampleHistory()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.SheetName}, f.GetSheetList())
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Contains(t, rows[0], "Fecha de recepción")
	assert.Contains(t, rows[0], "Número del Oficio")
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "1", rows[2][0])

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "23 - Gobierno Regional de Tacna", props.Subject)
}

func TestReadRows_RoundTripsThroughMapper(t *testing.T) {
	var buf bytes.Buffer
	recs := sampleHistory()
	require.NoError(t, export.History(&buf, units.Unit{}, recs))

	rows, err := export.ReadRows(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for i, rec := range recs {
		assert.Equal(t, record.FormOf(rec), mapper.FormFromRow(rows[i]), "row %d", i)
		id, ok := mapper.RecordID(rows[i])
		assert.True(t, ok)
		assert.Equal(t, rec.ID, id)
		assert.Equal(t, "23", mapper.UnitCode(rows[i]))
	}
}

func TestReadRows_EmptySheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.History(&buf, units.Unit{}, nil))

	_, err := export.ReadRows(&buf)
	assert.ErrorIs(t, err, export.ErrNoRows)

	_, err = export.ReadRows(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}
