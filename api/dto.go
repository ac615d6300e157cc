/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract. JSON field names follow
  the it_pei_historial column names so clients see one vocabulary.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags for shape checks (date
  format, lengths, non-negative counts). Domain rules (issue prerequisites,
  period pattern, articulation options) are checked by record/reconcile.

SEE ALSO:
  - handlers.go: Uses these types
  - record/form.go: Domain form
*/
package api

import (
	"time"

	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/reconcile"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// =============================================================================
// UNITS
// =============================================================================

// UnitDTO represents an executing unit in API responses.
type UnitDTO struct {
	Code        string `json:"codigo"`
	Name        string `json:"nombre"`
	Sector      string `json:"sector,omitempty"`
	Level       string `json:"ng,omitempty"`
	Responsible string `json:"responsable_institucional,omitempty"`
	Label       string `json:"label"`
}

// CreateUnitRequest upserts a unit.
type CreateUnitRequest struct {
	Code        string `json:"codigo" validate:"required,max=20"`
	Name        string `json:"nombre" validate:"required,max=200"`
	Sector      string `json:"sector" validate:"max=200"`
	Level       string `json:"ng" validate:"max=60"`
	Responsible string `json:"responsable_institucional" validate:"max=200"`
}

// ArticulationsDTO lists the plans a unit may articulate with.
type ArticulationsDTO struct {
	Code    string   `json:"codigo"`
	Level   string   `json:"ng"`
	Options []string `json:"options"`
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordDTO represents a stored review record. Absent dates are null.
type RecordDTO struct {
	ID             int64       `json:"id"`
	UnitCode       string      `json:"id_ue"`
	Year           int         `json:"anio"`
	NG1            string      `json:"ng1,omitempty"`
	NG2            string      `json:"ng2,omitempty"`
	ReceptionDate  record.Date `json:"fecha_recepcion"`
	Period         string      `json:"periodo_pei"`
	Validity       string      `json:"vigencia"`
	PlanType       string      `json:"tipo_pei"`
	Status         string      `json:"estado"`
	Responsible    string      `json:"responsable_institucional"`
	RevisionCount  int         `json:"cantidad_revisiones"`
	DerivationDate record.Date `json:"fecha_derivacion"`
	ReviewStage    string      `json:"etapas_revision"`
	Comment        string      `json:"comentario_adicional_emisor_it"`
	Articulation   string      `json:"articulacion"`
	FileRef        string      `json:"expediente"`
	ReportDate     record.Date `json:"fecha_it"`
	ReportNumber   string      `json:"numero_it"`
	LetterDate     record.Date `json:"fecha_oficio"`
	LetterNumber   string      `json:"numero_oficio"`
	CreatedAt      string      `json:"created_at,omitempty"`
	CreatedBy      string      `json:"created_by,omitempty"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// FormDTO is the editable field set. Dates are YYYY-MM-DD or empty.
type FormDTO struct {
	PlanType       string `json:"tipo_pei" validate:"max=40"`
	ReviewStage    string `json:"etapas_revision" validate:"max=60"`
	ReceptionDate  string `json:"fecha_recepcion" validate:"omitempty,datetime=2006-01-02"`
	Articulation   string `json:"articulacion" validate:"max=80"`
	DerivationDate string `json:"fecha_derivacion" validate:"omitempty,datetime=2006-01-02"`
	Period         string `json:"periodo_pei" validate:"max=20"`
	RevisionCount  int    `json:"cantidad_revisiones" validate:"min=0,max=1000"`
	Comment        string `json:"comentario_adicional_emisor_it" validate:"max=4000"`
	Validity       string `json:"vigencia" validate:"max=10"`
	Status         string `json:"estado" validate:"max=40"`
	FileRef        string `json:"expediente" validate:"max=120"`
	ReportDate     string `json:"fecha_it" validate:"omitempty,datetime=2006-01-02"`
	ReportNumber   string `json:"numero_it" validate:"max=120"`
	LetterDate     string `json:"fecha_oficio" validate:"omitempty,datetime=2006-01-02"`
	LetterNumber   string `json:"numero_oficio" validate:"max=120"`
}

// CreateSessionRequest opens a form session for a unit.
type CreateSessionRequest struct {
	UnitCode string `json:"unit_code" validate:"required,max=20"`
}

// SubmitRequest persists the session's form.
type SubmitRequest struct {
	Form        FormDTO `json:"form"`
	Responsible string  `json:"responsable_institucional" validate:"max=200"`
	CreatedBy   string  `json:"created_by" validate:"max=120"`
}

// PrefillRequest carries one historical row, current or legacy names.
type PrefillRequest struct {
	Row map[string]any `json:"row" validate:"required,min=1"`
}

// SessionDTO represents a form session.
type SessionDTO struct {
	ID            string   `json:"id"`
	Mode          string   `json:"mode"`
	UnitCode      string   `json:"unit_code"`
	EditID        int64    `json:"edit_id,omitempty"`
	LastID        int64    `json:"last_id,omitempty"`
	Form          FormDTO  `json:"form"`
	Unit          *UnitDTO `json:"unit,omitempty"`
	Articulations []string `json:"articulation_options"`
	FrozenFields  []string `json:"frozen_fields,omitempty"`
}

// LoadLatestResponse reports whether a record was loaded.
type LoadLatestResponse struct {
	Loaded  bool       `json:"loaded"`
	Session SessionDTO `json:"session"`
}

// SubmitResponse reports the written record.
type SubmitResponse struct {
	ID      int64      `json:"id"`
	Action  string     `json:"action"`
	Session SessionDTO `json:"session"`
}

// HealthDTO is returned by /healthz.
type HealthDTO struct {
	Status string `json:"status"`
	Driver string `json:"driver,omitempty"`
	Units  int    `json:"units"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldErrorDTO is one entry of a validation failure.
type FieldErrorDTO struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUnitDTO(u units.Unit) UnitDTO {
	return UnitDTO{
		Code:        u.Code,
		Name:        u.Name,
		Sector:      u.Sector,
		Level:       u.Level,
		Responsible: u.Responsible,
		Label:       u.Label(),
	}
}

func toUnitDTOs(list []units.Unit) []UnitDTO {
	dtos := make([]UnitDTO, len(list))
	for i, u := range list {
		dtos[i] = toUnitDTO(u)
	}
	return dtos
}

func toRecordDTO(r record.Record) RecordDTO {
	dto := RecordDTO{
		ID:             r.ID,
		UnitCode:       r.UnitCode,
		Year:           r.Year,
		NG1:            r.NG1,
		NG2:            r.NG2,
		ReceptionDate:  r.ReceptionDate,
		Period:         r.Period,
		Validity:       string(r.Validity),
		PlanType:       string(r.PlanType),
		Status:         string(r.Status),
		Responsible:    r.Responsible,
		RevisionCount:  r.RevisionCount,
		DerivationDate: r.DerivationDate,
		ReviewStage:    string(r.ReviewStage),
		Comment:        r.Comment,
		Articulation:   r.Articulation,
		FileRef:        r.FileRef,
		ReportDate:     r.ReportDate,
		ReportNumber:   r.ReportNumber,
		LetterDate:     r.LetterDate,
		LetterNumber:   r.LetterNumber,
		CreatedBy:      r.CreatedBy,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toRecordDTOs(recs []record.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i, r := range recs {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

func toFormDTO(f record.Form) FormDTO {
	return FormDTO{
		PlanType:       string(f.PlanType),
		ReviewStage:    string(f.ReviewStage),
		ReceptionDate:  f.ReceptionDate.String(),
		Articulation:   f.Articulation,
		DerivationDate: f.DerivationDate.String(),
		Period:         f.Period,
		RevisionCount:  f.RevisionCount,
		Comment:        f.Comment,
		Validity:       string(f.Validity),
		Status:         string(f.Status),
		FileRef:        f.FileRef,
		ReportDate:     f.ReportDate.String(),
		ReportNumber:   f.ReportNumber,
		LetterDate:     f.LetterDate.String(),
		LetterNumber:   f.LetterNumber,
	}
}

// ToForm converts a validated FormDTO. Enum spellings are canonicalised;
// empty enums take the form defaults; unknown spellings pass through for
// the domain checks to reject.
func (d FormDTO) ToForm() record.Form {
	def := record.DefaultForm()
	return record.Form{
		PlanType:       record.PlanType(choice(record.PlanTypeChoices, d.PlanType, string(def.PlanType))),
		ReviewStage:    record.ReviewStage(choice(record.ReviewStageChoices, d.ReviewStage, string(def.ReviewStage))),
		ReceptionDate:  date(d.ReceptionDate),
		Articulation:   normalize.String(d.Articulation),
		DerivationDate: date(d.DerivationDate),
		Period:         normalize.String(d.Period),
		RevisionCount:  d.RevisionCount,
		Comment:        normalize.String(d.Comment),
		Validity:       record.Validity(choice(record.ValidityChoices, d.Validity, string(def.Validity))),
		Status:         record.Status(choice(record.StatusChoices, d.Status, string(def.Status))),
		FileRef:        normalize.String(d.FileRef),
		ReportDate:     date(d.ReportDate),
		ReportNumber:   normalize.String(d.ReportNumber),
		LetterDate:     date(d.LetterDate),
		LetterNumber:   normalize.String(d.LetterNumber),
	}
}

func choice(c normalize.Choices, v, def string) string {
	v = normalize.String(v)
	if v == "" {
		return def
	}
	if canonical, ok := c.Lookup(v); ok {
		return canonical
	}
	return v
}

// date assumes the validator already enforced the layout.
func date(s string) record.Date {
	d, err := record.ParseDate(normalize.String(s))
	if err != nil {
		return record.Date{}
	}
	return d
}

func toSessionDTO(id string, st reconcile.FormState, lookup reconcile.UnitLookup) SessionDTO {
	dto := SessionDTO{
		ID:            id,
		Mode:          string(st.Mode),
		UnitCode:      st.UnitCode,
		EditID:        st.EditID,
		LastID:        st.LastID,
		Form:          toFormDTO(st.Form),
		Articulations: []string{},
	}
	if lookup != nil {
		if u, ok := lookup.Lookup(st.UnitCode); ok {
			unit := toUnitDTO(u)
			dto.Unit = &unit
			if opts := units.ArticulationOptions(u.Level); opts != nil {
				dto.Articulations = opts
			}
		}
	}
	if st.Mode == reconcile.ModeEditing {
		dto.FrozenFields = record.FrozenColumns
	}
	return dto
}
