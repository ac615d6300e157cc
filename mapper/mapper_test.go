package mapper_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ceplan/itpei/mapper"
	"github.com/ceplan/itpei/record"
)

func TestFormFromRow_CurrentColumnNames(t *testing.T) {
	// GIVEN: A row as read from it_pei_historial
	row := mapper.Row{
		"id":                             int64(41),
		"id_ue":                          "23",
		"tipo_pei":                       "AMPLIADO",
		"etapas_revision":                "revision_dncp",
		"fecha_recepcion":                time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"articulacion":                   " PDRC ",
		"fecha_derivacion":               "2024-01-12",
		"periodo_pei":                    "2025-2027",
		"cantidad_revisiones":            "2.0",
		"comentario_adicional_emisor_it": "observado",
		"vigencia":                       "si",
		"estado":                         "emitido",
		"expediente":                     "EXP-9",
		"fecha_it":                       "2024-02-01",
		"numero_it":                      "IT-77",
		"fecha_oficio":                   "2024-02-03",
		"numero_oficio":                  "OF-12",
	}

	// WHEN
	form := mapper.FormFromRow(row)

	// THEN
	assert.Equal(t, record.PlanExpanded, form.PlanType)
	assert.Equal(t, record.StageReviewDNCP, form.ReviewStage)
	assert.Equal(t, "2024-01-10", form.ReceptionDate.String())
	assert.Equal(t, "PDRC", form.Articulation)
	assert.Equal(t, "2024-01-12", form.DerivationDate.String())
	assert.Equal(t, "2025-2027", form.Period)
	assert.Equal(t, 2, form.RevisionCount)
	assert.Equal(t, "observado", form.Comment)
	assert.Equal(t, record.ValidityYes, form.Validity)
	assert.Equal(t, record.StatusIssued, form.Status)
	assert.Equal(t, "EXP-9", form.FileRef)
	assert.Equal(t, "2024-02-01", form.ReportDate.String())
	assert.Equal(t, "IT-77", form.ReportNumber)
	assert.Equal(t, "2024-02-03", form.LetterDate.String())
	assert.Equal(t, "OF-12", form.LetterNumber)

	id, ok := mapper.RecordID(row)
	assert.True(t, ok)
	assert.Equal(t, int64(41), id)
	assert.Equal(t, "23", mapper.UnitCode(row))
}

func TestFormFromRow_LegacySpreadsheetLabels(t *testing.T) {
	row := mapper.Row{
		"codigo":                              23.0,
		"Tipo de PEI":                         "Actualizado",
		"Etapas de revisión":                  "Subsanacion del pliego",
		"Fecha de recepción":                  "10/01/2024",
		"Articulación":                        "PEDN 2050",
		"Periodo PEI":                         "2024-2026",
		"Cantidad de revisiones":              3.0,
		"Comentario adicional/ Emisor de I.T": "ok",
		"Vigencia":                            "NO",
		"Estado":                              "Proceso",
		"Fecha de I.T":                        45301.0,
		"Número de I.T":                       "IT-1",
		"Fecha del Oficio":                    "2024-03-01",
		"Número del Oficio":                   "OF-1",
	}

	form := mapper.FormFromRow(row)

	assert.Equal(t, record.PlanUpdated, form.PlanType)
	assert.Equal(t, record.StageUnitCorrection, form.ReviewStage)
	assert.Equal(t, "2024-01-10", form.ReceptionDate.String())
	assert.Equal(t, "PEDN 2050", form.Articulation)
	assert.Equal(t, "2024-2026", form.Period)
	assert.Equal(t, 3, form.RevisionCount)
	assert.Equal(t, "ok", form.Comment)
	assert.Equal(t, record.ValidityNo, form.Validity)
	assert.Equal(t, record.StatusInProcess, form.Status)
	assert.Equal(t, "2024-01-10", form.ReportDate.String())
	assert.Equal(t, "IT-1", form.ReportNumber)
	assert.Equal(t, "2024-03-01", form.LetterDate.String())
	assert.Equal(t, "OF-1", form.LetterNumber)
	assert.Equal(t, "23", mapper.UnitCode(row))

	_, ok := mapper.RecordID(row)
	assert.False(t, ok)
}

func TestFormFromRow_CurrentNameBeatsLegacy(t *testing.T) {
	row := mapper.Row{
		"estado":           "En proceso",
		"Estado":           "Emitido",
		"Fecha Oficio":     "2024-04-01",
		"Fecha del Oficio": "2024-05-01",
	}
	form := mapper.FormFromRow(row)
	assert.Equal(t, record.StatusInProcess, form.Status)
	assert.Equal(t, "2024-04-01", form.LetterDate.String(), "first legacy label wins")
}

func TestFormFromRow_EmptyRowYieldsDefaults(t *testing.T) {
	assert.Equal(t, record.DefaultForm(), mapper.FormFromRow(mapper.Row{}))
	assert.Equal(t, record.DefaultForm(), mapper.FormFromRow(nil))
}

func TestFormFromRow_MalformedValuesDegrade(t *testing.T) {
	row := mapper.Row{
		"tipo_pei":            "Reformulado",
		"etapas_revision":     42,
		"fecha_recepcion":     "ayer",
		"cantidad_revisiones": "varias",
		"vigencia":            math.NaN(),
		"estado":              []int{1, 2},
		"fecha_it":            struct{}{},
		"periodo_pei":         nil,
		"numero_it":           math.NaN(),
	}

	assert.NotPanics(t, func() {
		form := mapper.FormFromRow(row)
		def := record.DefaultForm()
		assert.Equal(t, def.PlanType, form.PlanType)
		assert.Equal(t, def.ReviewStage, form.ReviewStage)
		assert.True(t, form.ReceptionDate.IsZero())
		assert.Equal(t, 0, form.RevisionCount)
		assert.Equal(t, def.Validity, form.Validity)
		assert.Equal(t, def.Status, form.Status)
		assert.True(t, form.ReportDate.IsZero())
		assert.Equal(t, "", form.Period)
		assert.Equal(t, "", form.ReportNumber)
	})
}

func TestFormFromRow_TypedNilValuesAreMissing(t *testing.T) {
	for _, nilValue := range []any{(*time.Time)(nil), (*decimal.Decimal)(nil), (*string)(nil), (*int)(nil)} {
		// GIVEN: Every known column holding the same typed nil
		row := mapper.Row{}
		for _, c := range mapper.Fields {
			for _, k := range c.Keys {
				row[k] = nilValue
			}
		}
		row[record.ColID] = nilValue
		row[record.ColUnitCode] = nilValue

		// WHEN/THEN: Mapping degrades to the defaults instead of panicking
		assert.NotPanics(t, func() {
			assert.Equal(t, record.DefaultForm(), mapper.FormFromRow(row), "value %#v", nilValue)
			_, ok := mapper.RecordID(row)
			assert.False(t, ok)
			assert.Equal(t, "", mapper.UnitCode(row))
		}, "value %#v", nilValue)
	}
}

func TestRowFromRecord_RoundTripsThroughMapper(t *testing.T) {
	rec := record.Record{
		ID:            7,
		UnitCode:      "23",
		ReceptionDate: record.NewDate(2024, 1, 10),
		Period:        "2025-2027",
		Validity:      record.ValidityNo,
		PlanType:      record.PlanFormulated,
		Status:        record.StatusIssued,
		ReviewStage:   record.StageReportIssued,
		RevisionCount: 4,
		Articulation:  "PDRC",
		FileRef:       "EXP",
		ReportDate:    record.NewDate(2024, 2, 2),
		ReportNumber:  "IT-2",
	}

	row := mapper.RowFromRecord(rec)
	assert.Equal(t, record.FormOf(rec), mapper.FormFromRow(row))

	id, ok := mapper.RecordID(row)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestFields_TableCoversEveryFormField(t *testing.T) {
	seen := map[mapper.Field]bool{}
	for _, c := range mapper.Fields {
		assert.False(t, seen[c.Field], "duplicate field %s", c.Field)
		assert.NotEmpty(t, c.Keys)
		seen[c.Field] = true
	}
	assert.Len(t, seen, 15)
}

func TestLabel_IsTheSpreadsheetHeader(t *testing.T) {
	assert.Equal(t, "Fecha del Oficio", mapper.Label(mapper.FieldLetterDate))
	assert.Equal(t, "Etapas de revisión", mapper.Label(mapper.FieldReviewStage))
	assert.Equal(t, "Tipo de PEI", mapper.Label(mapper.FieldPlanType))
	assert.Equal(t, "desconocido", mapper.Label(mapper.Field("desconocido")))
}
