/*
Package mapper resolves historical rows into canonical form values.

PURPOSE:
  A historical row may come from the current it_pei_historial table
  (snake_case columns) or from a legacy spreadsheet export (human labels
  such as "Fecha de recepción"). FormFromRow turns either into a
  record.Form the reconciler can load.

LOOKUP ORDER:
  Each logical field owns one ordered list of candidate keys in Fields:
  current column name first, then legacy names. The first key present in
  the row with a non-nil value wins; when none is present the field keeps
  its default. The table is the single place to audit or extend mappings.

ROBUSTNESS:
  FormFromRow never fails. Malformed values (unknown enum spellings,
  unparseable dates, text in numeric cells) degrade to the field default
  because source rows come from years of heterogeneous manual entry.

SEE ALSO:
  - normalize/normalize.go: Value coercion
  - record/choices.go: Enum variant tables
  - reconcile/reconciler.go: Loads the mapped form into a session
*/
package mapper

import (
	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/record"
)

// Row is one historical row keyed by column name or legacy label.
type Row map[string]any

// Field identifies one logical form field.
type Field string

const (
	FieldPlanType       Field = "tipo_pei"
	FieldReviewStage    Field = "etapa_revision"
	FieldReceptionDate  Field = "fecha_recepcion"
	FieldArticulation   Field = "articulacion"
	FieldDerivationDate Field = "fecha_derivacion"
	FieldPeriod         Field = "periodo"
	FieldRevisionCount  Field = "cantidad_revisiones"
	FieldComment        Field = "comentario"
	FieldValidity       Field = "vigencia"
	FieldStatus         Field = "estado"
	FieldFileRef        Field = "expediente"
	FieldReportDate     Field = "fecha_it"
	FieldReportNumber   Field = "numero_it"
	FieldLetterDate     Field = "fecha_oficio"
	FieldLetterNumber   Field = "numero_oficio"
)

// Candidate lists the keys tried for one field, in priority order.
type Candidate struct {
	Field Field
	Keys  []string
}

// Fields is the mapping table: current name -> legacy name(s).
// Where two legacy labels exist the first listed wins.
var Fields = []Candidate{
	{FieldPlanType, []string{record.ColPlanType, "Tipo de PEI"}},
	{FieldReviewStage, []string{record.ColReviewStage, "etapa_revision", "Etapas de revisión"}},
	{FieldReceptionDate, []string{record.ColReceptionDate, "Fecha de recepción"}},
	{FieldArticulation, []string{record.ColArticulation, "Articulación"}},
	{FieldDerivationDate, []string{record.ColDerivationDate, "Fecha de derivación"}},
	{FieldPeriod, []string{record.ColPeriod, "periodo", "Periodo PEI"}},
	{FieldRevisionCount, []string{record.ColRevisionCount, "Cantidad de revisiones"}},
	{FieldComment, []string{record.ColComment, "comentario", "Comentario adicional/ Emisor de I.T"}},
	{FieldValidity, []string{record.ColValidity, "Vigencia"}},
	{FieldStatus, []string{record.ColStatus, "Estado"}},
	{FieldFileRef, []string{record.ColFileRef, "Expediente"}},
	{FieldReportDate, []string{record.ColReportDate, "Fecha de I.T"}},
	{FieldReportNumber, []string{record.ColReportNumber, "Número de I.T"}},
	{FieldLetterDate, []string{record.ColLetterDate, "Fecha Oficio", "Fecha del Oficio"}},
	{FieldLetterNumber, []string{record.ColLetterNumber, "Número Oficio", "Número del Oficio"}},
}

var (
	idKeys       = []string{record.ColID}
	unitCodeKeys = []string{record.ColUnitCode, "codigo", "Código", "Id_UE"}
)

var byField = func() map[Field][]string {
	m := make(map[Field][]string, len(Fields))
	for _, c := range Fields {
		m[c.Field] = c.Keys
	}
	return m
}()

// Label returns the human spreadsheet label of a field, the last legacy key.
func Label(f Field) string {
	keys := byField[f]
	if len(keys) == 0 {
		return string(f)
	}
	return keys[len(keys)-1]
}

// Lookup returns the first present, non-nil value among keys.
func (r Row) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Row) field(f Field) any {
	v, _ := r.Lookup(byField[f]...)
	return v
}

// =============================================================================
// MAPPING
// =============================================================================

// FormFromRow maps a current or legacy row onto a form, starting from
// record.DefaultForm.
func FormFromRow(row Row) record.Form {
	def := record.DefaultForm()
	return record.Form{
		PlanType:       record.PlanType(record.PlanTypeChoices.Match(row.field(FieldPlanType), string(def.PlanType))),
		ReviewStage:    record.ReviewStage(record.ReviewStageChoices.Match(row.field(FieldReviewStage), string(def.ReviewStage))),
		ReceptionDate:  date(row.field(FieldReceptionDate)),
		Articulation:   normalize.String(row.field(FieldArticulation)),
		DerivationDate: date(row.field(FieldDerivationDate)),
		Period:         normalize.String(row.field(FieldPeriod)),
		RevisionCount:  normalize.IntOr(row.field(FieldRevisionCount), 0),
		Comment:        normalize.String(row.field(FieldComment)),
		Validity:       record.Validity(record.ValidityChoices.Match(row.field(FieldValidity), string(def.Validity))),
		Status:         record.Status(record.StatusChoices.Match(row.field(FieldStatus), string(def.Status))),
		FileRef:        normalize.String(row.field(FieldFileRef)),
		ReportDate:     date(row.field(FieldReportDate)),
		ReportNumber:   normalize.String(row.field(FieldReportNumber)),
		LetterDate:     date(row.field(FieldLetterDate)),
		LetterNumber:   normalize.String(row.field(FieldLetterNumber)),
	}
}

// RecordID returns the store identifier carried by the row, if any.
func RecordID(row Row) (int64, bool) {
	v, ok := row.Lookup(idKeys...)
	if !ok {
		return 0, false
	}
	n, ok := normalize.Int(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return int64(n), true
}

// UnitCode returns the normalized unit code carried by the row.
func UnitCode(row Row) string {
	v, _ := row.Lookup(unitCodeKeys...)
	return normalize.Code(v)
}

// RowFromRecord exposes a stored record under its current column names.
func RowFromRecord(r record.Record) Row {
	row := Row{
		record.ColID:             r.ID,
		record.ColUnitCode:       r.UnitCode,
		record.ColYear:           r.Year,
		record.ColNG1:            r.NG1,
		record.ColNG2:            r.NG2,
		record.ColPeriod:         r.Period,
		record.ColValidity:       string(r.Validity),
		record.ColPlanType:       string(r.PlanType),
		record.ColStatus:         string(r.Status),
		record.ColResponsible:    r.Responsible,
		record.ColRevisionCount:  r.RevisionCount,
		record.ColReviewStage:    string(r.ReviewStage),
		record.ColComment:        r.Comment,
		record.ColArticulation:   r.Articulation,
		record.ColFileRef:        r.FileRef,
		record.ColReportNumber:   r.ReportNumber,
		record.ColLetterNumber:   r.LetterNumber,
		record.ColCreatedBy:      r.CreatedBy,
		record.ColReceptionDate:  dateValue(r.ReceptionDate),
		record.ColDerivationDate: dateValue(r.DerivationDate),
		record.ColReportDate:     dateValue(r.ReportDate),
		record.ColLetterDate:     dateValue(r.LetterDate),
	}
	if !r.CreatedAt.IsZero() {
		row[record.ColCreatedAt] = r.CreatedAt
	}
	return row
}

func date(v any) record.Date {
	t, ok := normalize.Date(v)
	if !ok {
		return record.Date{}
	}
	return record.Date{Time: t}
}

func dateValue(d record.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}
