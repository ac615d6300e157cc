/*
Package record defines the IT/PEI review record and its rules.

PURPOSE:
  One Record is one row of review history for one executing unit (UE) in
  table it_pei_historial. This package holds the record type, the editable
  form field set, the enumerated choices, the update changeset, the error
  taxonomy and the Gateway contract every store implements.

KEY CONCEPTS IN THIS FILE (record.go):
  - Record: A stored review row, keyed by a store-assigned ID
  - Column names: The it_pei_historial schema, used as map keys everywhere
  - Frozen columns: Set on insert, never touched by an update

LIFECYCLE:
  1. Created by Gateway.Insert with every field supplied
  2. Mutated only by Gateway.Update with a Changeset
  3. Never deleted

  fecha_recepcion, periodo_pei, vigencia, tipo_pei and articulacion are
  frozen once the record exists.

SEE ALSO:
  - form.go: Editable field set and validation
  - changeset.go: Update payloads
  - store.go: Gateway interface
  - errors.go: Validation / Conflict / NotFound / Store errors
*/
package record

import (
	"time"
)

// =============================================================================
// COLUMNS - it_pei_historial schema
// =============================================================================

const (
	ColID             = "id"
	ColUnitCode       = "id_ue"
	ColYear           = "anio"
	ColNG1            = "ng1"
	ColNG2            = "ng2"
	ColReceptionDate  = "fecha_recepcion"
	ColPeriod         = "periodo_pei"
	ColValidity       = "vigencia"
	ColPlanType       = "tipo_pei"
	ColStatus         = "estado"
	ColResponsible    = "responsable_institucional"
	ColRevisionCount  = "cantidad_revisiones"
	ColDerivationDate = "fecha_derivacion"
	ColReviewStage    = "etapas_revision"
	ColComment        = "comentario_adicional_emisor_it"
	ColArticulation   = "articulacion"
	ColFileRef        = "expediente"
	ColReportDate     = "fecha_it"
	ColReportNumber   = "numero_it"
	ColLetterDate     = "fecha_oficio"
	ColLetterNumber   = "numero_oficio"
	ColCreatedAt      = "created_at"
	ColCreatedBy      = "created_by"
)

// Columns lists every it_pei_historial column in schema order.
var Columns = []string{
	ColID, ColUnitCode, ColYear, ColNG1, ColNG2,
	ColReceptionDate, ColPeriod, ColValidity, ColPlanType, ColStatus,
	ColResponsible, ColRevisionCount, ColDerivationDate, ColReviewStage,
	ColComment, ColArticulation, ColFileRef, ColReportDate, ColReportNumber,
	ColLetterDate, ColLetterNumber, ColCreatedAt, ColCreatedBy,
}

// FrozenColumns can never appear in an update changeset.
var FrozenColumns = []string{
	ColReceptionDate,
	ColPeriod,
	ColValidity,
	ColPlanType,
	ColArticulation,
}

// UpdatableColumns are the only columns an update may touch.
var UpdatableColumns = []string{
	ColStatus,
	ColResponsible,
	ColRevisionCount,
	ColDerivationDate,
	ColReviewStage,
	ColComment,
	ColFileRef,
	ColReportDate,
	ColReportNumber,
	ColLetterDate,
	ColLetterNumber,
	ColNG1,
	ColNG2,
}

// IsFrozen reports whether col is locked after insert.
func IsFrozen(col string) bool {
	return contains(FrozenColumns, col)
}

// IsUpdatable reports whether col may appear in a changeset.
func IsUpdatable(col string) bool {
	return contains(UpdatableColumns, col)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one review row for one executing unit.
type Record struct {
	ID       int64
	UnitCode string
	Year     int
	NG1      string
	NG2      string

	ReceptionDate  Date
	Period         string
	Validity       Validity
	PlanType       PlanType
	Status         Status
	Responsible    string
	RevisionCount  int
	DerivationDate Date
	ReviewStage    ReviewStage
	Comment        string
	Articulation   string

	// Technical report (IT) and official letter (oficio)
	FileRef      string
	ReportDate   Date
	ReportNumber string
	LetterDate   Date
	LetterNumber string

	CreatedAt time.Time
	CreatedBy string
}

// CheckInsert enforces the fields the store needs before writing a new row.
func (r Record) CheckInsert() error {
	var errs ValidationErrors
	if r.UnitCode == "" {
		errs = append(errs, &ValidationError{Field: ColUnitCode, Reason: "required"})
	}
	if r.ReceptionDate.IsZero() {
		errs = append(errs, &ValidationError{Field: ColReceptionDate, Reason: "required"})
	}
	return errs.Err()
}

// Values returns the insertable column values keyed by column name.
// ID and created_at are left to the store.
func (r Record) Values() map[string]any {
	return map[string]any{
		ColUnitCode:       r.UnitCode,
		ColYear:           r.Year,
		ColNG1:            nullable(r.NG1),
		ColNG2:            nullable(r.NG2),
		ColReceptionDate:  r.ReceptionDate,
		ColPeriod:         r.Period,
		ColValidity:       string(r.Validity),
		ColPlanType:       string(r.PlanType),
		ColStatus:         string(r.Status),
		ColResponsible:    r.Responsible,
		ColRevisionCount:  r.RevisionCount,
		ColDerivationDate: r.DerivationDate,
		ColReviewStage:    string(r.ReviewStage),
		ColComment:        r.Comment,
		ColArticulation:   r.Articulation,
		ColFileRef:        r.FileRef,
		ColReportDate:     r.ReportDate,
		ColReportNumber:   r.ReportNumber,
		ColLetterDate:     r.LetterDate,
		ColLetterNumber:   r.LetterNumber,
		ColCreatedBy:      nullable(r.CreatedBy),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
