/*
Package reconcile decides, at submit time, whether a form becomes a new
record or an update of an existing one.

STATE MACHINE:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │             LoadLatest / Prefill(id)                             │
  │   ┌─────┐  ─────────────────────────▶  ┌─────────┐               │
  │   │ NEW │                              │ EDITING │               │
  │   └─────┘  ◀─────────────────────────  └─────────┘               │
  │      │               StartNew               │                    │
  │      │ Submit: Insert                       │ Submit: Update     │
  │      ▼                                      ▼                    │
  │   ┌──────────────────────────────────────────────┐               │
  │   │                  BROWSING                    │               │
  │   └──────────────────────────────────────────────┘               │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

SUBMIT:
  Validation runs before any store call. A failed validation or a failed
  store call leaves the FormState exactly as it was so the user can fix
  the input and resubmit; only success moves to BROWSING.

  NEW:     full record (unit code, year from the clock, responsible,
           created_by, every form field) -> Gateway.Insert
  EDITING: changeset of the editable columns only -> Gateway.Update.
           fecha_recepcion, periodo_pei, vigencia, tipo_pei and
           articulacion are frozen once a record exists.

SEE ALSO:
  - mapper/mapper.go: Historical row -> Form
  - record/form.go: Field checks
  - record/store.go: Gateway contract
*/
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/ceplan/itpei/mapper"
	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// Mode is the position of a FormState in the state machine.
type Mode string

const (
	ModeNew      Mode = "NEW"
	ModeEditing  Mode = "EDITING"
	ModeBrowsing Mode = "BROWSING"
)

// FormState is the transient state of one form session.
type FormState struct {
	Mode     Mode        `json:"mode"`
	UnitCode string      `json:"unit_code"`
	EditID   int64       `json:"edit_id,omitempty"`
	Form     record.Form `json:"form"`

	// LastID is the record written by the last successful submit.
	LastID int64 `json:"last_id,omitempty"`
}

// NewState starts a blank NEW form for a unit.
func NewState(unitCode any) FormState {
	return FormState{
		Mode:     ModeNew,
		UnitCode: normalize.Code(unitCode),
		Form:     record.DefaultForm(),
	}
}

// Meta carries submit context that is not part of the form.
type Meta struct {
	// Responsible overrides the unit's institutional responsible.
	Responsible string
	CreatedBy   string
}

// UnitLookup resolves unit codes. *units.Directory and *units.Catalog
// both satisfy it.
type UnitLookup interface {
	Lookup(code any) (units.Unit, bool)
}

// Reconciler drives FormState transitions against a Gateway.
type Reconciler struct {
	Gateway record.Gateway

	// Units is optional. Without it articulation and responsible defaults
	// are not derived from the unit.
	Units UnitLookup

	Now func() time.Time
	Log *slog.Logger
}

// New returns a Reconciler with a real clock and the default logger.
func New(gw record.Gateway, lookup UnitLookup) *Reconciler {
	return &Reconciler{Gateway: gw, Units: lookup, Now: time.Now, Log: slog.Default()}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// LoadLatest moves st to EDITING on the unit's most recent record. It
// reports false, leaving st untouched, when the unit has no history.
func (r *Reconciler) LoadLatest(ctx context.Context, st *FormState) (bool, error) {
	latest, err := r.Gateway.FetchLatest(ctx, st.UnitCode)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}

	row := mapper.RowFromRecord(*latest)
	*st = FormState{
		Mode:     ModeEditing,
		UnitCode: st.UnitCode,
		EditID:   latest.ID,
		Form:     mapper.FormFromRow(row),
	}
	r.log().Debug("loaded latest record", "unit", st.UnitCode, "id", latest.ID)
	return true, nil
}

// Prefill loads an arbitrary historical row, current or legacy, into the
// form. A row carrying an id targets that record for update.
func (r *Reconciler) Prefill(st *FormState, row mapper.Row) {
	next := FormState{
		Mode:     ModeNew,
		UnitCode: st.UnitCode,
		Form:     mapper.FormFromRow(row),
	}
	if next.UnitCode == "" {
		next.UnitCode = mapper.UnitCode(row)
	}
	if id, ok := mapper.RecordID(row); ok {
		next.Mode = ModeEditing
		next.EditID = id
	}
	*st = next
}

// StartNew discards any loaded record and returns to a blank NEW form.
func (r *Reconciler) StartNew(st *FormState) {
	*st = NewState(st.UnitCode)
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates form and persists it according to st.Mode. It returns
// the identifier of the written record.
func (r *Reconciler) Submit(ctx context.Context, st *FormState, form record.Form, meta Meta) (int64, error) {
	unit, known := r.unit(st.UnitCode)

	var id int64
	switch st.Mode {
	case ModeNew:
		rec := r.newRecord(st.UnitCode, form, meta, unit)
		if err := r.validateNew(rec, form, unit, known); err != nil {
			return 0, err
		}
		newID, err := r.Gateway.Insert(ctx, rec)
		if err != nil {
			r.log().Warn("insert failed", "unit", st.UnitCode, "error", err)
			return 0, err
		}
		id = newID
		r.log().Info("record inserted", "unit", st.UnitCode, "id", id, "status", form.Status)

	case ModeEditing:
		if err := validateEdit(form); err != nil {
			return 0, err
		}
		cs := Changes(form, responsible(meta, unit))
		if err := r.Gateway.Update(ctx, st.EditID, cs); err != nil {
			r.log().Warn("update failed", "unit", st.UnitCode, "id", st.EditID, "error", err)
			return 0, err
		}
		id = st.EditID
		form = keepFrozen(form, st.Form)
		r.log().Info("record updated", "unit", st.UnitCode, "id", id, "status", form.Status)

	default:
		return 0, &record.ValidationError{Field: "mode", Reason: "start a new record or load one before submitting"}
	}

	*st = FormState{Mode: ModeBrowsing, UnitCode: st.UnitCode, Form: form, LastID: id}
	return id, nil
}

// keepFrozen returns form with the locked fields taken from loaded, so the
// browsing view shows what the store holds.
func keepFrozen(form, loaded record.Form) record.Form {
	form.ReceptionDate = loaded.ReceptionDate
	form.Period = loaded.Period
	form.Validity = loaded.Validity
	form.PlanType = loaded.PlanType
	form.Articulation = loaded.Articulation
	return form
}

// Changes builds the update changeset for an edited form. Frozen columns
// are never included.
func Changes(form record.Form, responsible string) record.Changeset {
	return record.Changeset{
		record.ColStatus:         form.Status,
		record.ColResponsible:    responsible,
		record.ColRevisionCount:  form.RevisionCount,
		record.ColDerivationDate: form.DerivationDate,
		record.ColReviewStage:    form.ReviewStage,
		record.ColComment:        form.Comment,
		record.ColFileRef:        form.FileRef,
		record.ColReportDate:     form.ReportDate,
		record.ColReportNumber:   form.ReportNumber,
		record.ColLetterDate:     form.LetterDate,
		record.ColLetterNumber:   form.LetterNumber,
	}
}

func (r *Reconciler) newRecord(code string, form record.Form, meta Meta, unit units.Unit) record.Record {
	rec := record.Record{
		UnitCode:    code,
		Year:        r.now().Year(),
		NG1:         unit.Level,
		Responsible: responsible(meta, unit),
		CreatedBy:   normalize.String(meta.CreatedBy),
	}
	form.Apply(&rec)
	return rec
}

func (r *Reconciler) validateNew(rec record.Record, form record.Form, unit units.Unit, known bool) error {
	checks := []error{
		rec.CheckInsert(),
		form.CheckChoices(),
		record.CheckPeriod(form.Period),
		form.CheckIssue(),
	}
	if known {
		checks = append(checks, record.CheckArticulation(form.Articulation, units.ArticulationOptions(unit.Level)))
	}
	return record.Merge(checks...)
}

// The frozen fields are not re-checked on edit: they are never written.
func validateEdit(form record.Form) error {
	return record.Merge(form.CheckEditableChoices(), form.CheckIssue())
}

func (r *Reconciler) unit(code string) (units.Unit, bool) {
	if r.Units == nil {
		return units.Unit{}, false
	}
	return r.Units.Lookup(code)
}

func responsible(meta Meta, unit units.Unit) string {
	if s := normalize.String(meta.Responsible); s != "" {
		return s
	}
	return unit.Responsible
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Reconciler) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
