/*
handlers.go - HTTP API handlers for the IT/PEI review registry

PURPOSE:
  Exposes the review history and the guided record form over REST. Handles
  HTTP request/response and JSON serialization, and delegates to the units
  catalog, the history gateway and the form reconciler.

ENDPOINTS:
  Units:
    GET    /api/units?responsible=&q=       List units (filter, search)
    POST   /api/units                       Upsert a unit
    GET    /api/units/{code}                Unit details
    GET    /api/units/{code}/articulations  Articulation options of its level
    GET    /api/responsibles                Distinct responsible parties

  History:
    GET    /api/units/{code}/history        Records, newest first
    GET    /api/units/{code}/latest         Newest record (404 when none)
    GET    /api/units/{code}/history.xlsx   Excel download
    GET    /api/records?unit=&status=&plan_type=&from=&to=&limit=

  Form sessions:
    POST   /api/sessions                    Open a NEW form for a unit
    GET    /api/sessions/{id}               Current state
    POST   /api/sessions/{id}/load-latest   Edit the newest record
    POST   /api/sessions/{id}/new           Back to a blank NEW form
    POST   /api/sessions/{id}/prefill       Load a historical row (JSON or .xlsx)
    POST   /api/sessions/{id}/submit        Insert (NEW) or update (EDITING)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Gateway: history store (SQLite, Postgres or memory)
  - Units: unit catalog snapshot, refreshed on upsert
  - Reconciler: NEW / EDITING / BROWSING transitions
  - Sessions: FormState per open form

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (validator tags)
  3. Call domain logic (reconciler, gateway)
  4. Serialize response
  5. Map errors (errors.go)

SECURITY NOTE:
  No authentication. created_by is whatever the client sends.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error envelope and status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ceplan/itpei/export"
	"github.com/ceplan/itpei/mapper"
	"github.com/ceplan/itpei/normalize"
	"github.com/ceplan/itpei/reconcile"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// maxUpload caps spreadsheet bodies sent to prefill.
const maxUpload = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Gateway    record.Gateway
	Units      *units.Catalog
	Reconciler *reconcile.Reconciler
	Sessions   *Sessions
	Metrics    *Metrics
	Log        *slog.Logger

	// Ping reports store health for /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error

	// Driver is reported by /healthz.
	Driver string
}

// NewHandler creates a handler over a gateway and its unit catalog.
func NewHandler(gw record.Gateway, catalog *units.Catalog, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	rec := reconcile.New(gw, catalog)
	rec.Log = log

	h := &Handler{
		Gateway:    gw,
		Units:      catalog,
		Reconciler: rec,
		Sessions:   NewSessions(DefaultSessionTTL),
		Metrics:    NewMetrics(),
		Log:        log,
	}
	h.Metrics.watchSessions(h.Sessions)
	return h
}

func (h *Handler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{Status: "ok", Driver: h.Driver, Units: h.Units.Directory().Len()}
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns units, optionally narrowed to one responsible party
// and/or a code-or-name search.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	dir := h.Units.Directory()
	q := r.URL.Query()

	list := dir.All()
	if resp := q.Get("responsible"); resp != "" {
		list = dir.ByResponsible(resp)
	}
	list = units.Search(list, q.Get("q"))

	writeJSON(w, http.StatusOK, toUnitDTOs(list))
}

// GetUnit returns a single unit.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := h.Units.Lookup(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Unit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(u))
}

// CreateUnit upserts a unit and refreshes the catalog.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid unit", err)
		return
	}

	u, err := h.Units.Save(r.Context(), units.Unit{
		Code:        req.Code,
		Name:        req.Name,
		Sector:      req.Sector,
		Level:       req.Level,
		Responsible: req.Responsible,
	})
	if err != nil {
		h.fail(w, r, "Failed to save unit", err)
		return
	}

	h.log().Info("unit saved", "unit", u.Code)
	writeJSON(w, http.StatusCreated, toUnitDTO(u))
}

// ListResponsibles returns the distinct responsible parties.
func (h *Handler) ListResponsibles(w http.ResponseWriter, r *http.Request) {
	names := h.Units.Directory().Responsibles()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// GetArticulations returns the articulation options of a unit's level.
func (h *Handler) GetArticulations(w http.ResponseWriter, r *http.Request) {
	u, ok := h.Units.Lookup(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Unit not found", nil)
		return
	}
	opts := units.ArticulationOptions(u.Level)
	if opts == nil {
		opts = []string{}
	}
	writeJSON(w, http.StatusOK, ArticulationsDTO{Code: u.Code, Level: u.Level, Options: opts})
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetHistory returns every record of a unit, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	code := normalize.Code(chi.URLParam(r, "code"))
	recs, err := h.Gateway.FetchHistory(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to fetch history", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

// GetLatest returns the newest record of a unit.
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	code := normalize.Code(chi.URLParam(r, "code"))
	rec, err := h.Gateway.FetchLatest(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to fetch latest record", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "No records for unit", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// ExportHistory streams a unit's history as an Excel workbook.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	code := normalize.Code(chi.URLParam(r, "code"))
	recs, err := h.Gateway.FetchHistory(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to fetch history", err)
		return
	}
	unit, ok := h.Units.Lookup(code)
	if !ok {
		unit = units.Unit{Code: code}
	}

	// Build in memory so a failure can still become a JSON error.
	var buf bytes.Buffer
	if err := export.History(&buf, unit, recs); err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="historial_it_pei_%s.xlsx"`, code))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// SearchRecords filters records across units.
func (h *Handler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	f, limit, err := parseSearch(r)
	if err != nil {
		h.fail(w, r, "Invalid search", err)
		return
	}
	recs, err := h.Gateway.Search(r.Context(), f, limit)
	if err != nil {
		h.fail(w, r, "Failed to search records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(recs))
}

func parseSearch(r *http.Request) (record.SearchFilter, int, error) {
	q := r.URL.Query()
	f := record.SearchFilter{UnitCode: normalize.Code(q.Get("unit"))}
	var errs record.ValidationErrors

	if v := q.Get("status"); v != "" {
		if s, ok := record.StatusChoices.Lookup(v); ok {
			f.Status = record.Status(s)
		} else {
			errs = append(errs, &record.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", v)})
		}
	}
	if v := q.Get("plan_type"); v != "" {
		if p, ok := record.PlanTypeChoices.Lookup(v); ok {
			f.PlanType = record.PlanType(p)
		} else {
			errs = append(errs, &record.ValidationError{Field: "plan_type", Reason: fmt.Sprintf("unknown plan type %q", v)})
		}
	}

	var err error
	if f.ReceivedFrom, err = record.ParseDate(q.Get("from")); err != nil {
		errs = append(errs, &record.ValidationError{Field: "from", Reason: err.Error()})
	}
	if f.ReceivedTo, err = record.ParseDate(q.Get("to")); err != nil {
		errs = append(errs, &record.ValidationError{Field: "to", Reason: err.Error()})
	}
	if !f.ReceivedFrom.IsZero() && !f.ReceivedTo.IsZero() && f.ReceivedFrom.After(f.ReceivedTo) {
		errs = append(errs, &record.ValidationError{Field: "from", Reason: "must not be after to"})
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > record.DefaultSearchLimit {
			errs = append(errs, &record.ValidationError{
				Field:  "limit",
				Reason: fmt.Sprintf("must be between 1 and %d", record.DefaultSearchLimit),
			})
		} else {
			limit = n
		}
	}

	return f, limit, errs.Err()
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession opens a NEW form for a known unit.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid session request", err)
		return
	}
	u, ok := h.Units.Lookup(req.UnitCode)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "Unit not found", nil)
		return
	}

	st := reconcile.NewState(u.Code)
	id := h.Sessions.Create(st)
	h.log().Debug("session opened", "session", id, "unit", u.Code)
	writeJSON(w, http.StatusCreated, toSessionDTO(id, st, h.Units))
}

// GetSession returns the current form state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto SessionDTO
	err := h.Sessions.With(id, func(st *reconcile.FormState) error {
		dto = toSessionDTO(id, *st, h.Units)
		return nil
	})
	if err != nil {
		h.fail(w, r, "Session not found", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// LoadLatest moves the form to EDITING on the unit's newest record.
// Without history the form stays NEW and loaded is false.
func (h *Handler) LoadLatest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var resp LoadLatestResponse
	err := h.Sessions.With(id, func(st *reconcile.FormState) error {
		loaded, err := h.Reconciler.LoadLatest(r.Context(), st)
		if err != nil {
			return err
		}
		resp = LoadLatestResponse{Loaded: loaded, Session: toSessionDTO(id, *st, h.Units)}
		return nil
	})
	if err != nil {
		h.fail(w, r, "Failed to load latest record", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartNew resets the form to a blank NEW record.
func (h *Handler) StartNew(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto SessionDTO
	err := h.Sessions.With(id, func(st *reconcile.FormState) error {
		h.Reconciler.StartNew(st)
		dto = toSessionDTO(id, *st, h.Units)
		return nil
	})
	if err != nil {
		h.fail(w, r, "Session not found", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// Prefill loads one historical row into the form. The row comes either as
// JSON {"row": {...}} or as an .xlsx body, picking data row ?row=N (1-based).
func (h *Handler) Prefill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	row, err := h.prefillRow(w, r)
	if err != nil {
		h.fail(w, r, "Invalid prefill row", err)
		return
	}

	var dto SessionDTO
	err = h.Sessions.With(id, func(st *reconcile.FormState) error {
		h.Reconciler.Prefill(st, row)
		dto = toSessionDTO(id, *st, h.Units)
		return nil
	})
	if err != nil {
		h.fail(w, r, "Session not found", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) prefillRow(w http.ResponseWriter, r *http.Request) (mapper.Row, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != export.ContentType {
		var req PrefillRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return mapper.Row(req.Row), nil
	}

	rows, err := export.ReadRows(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		return nil, &record.ValidationError{Field: "file", Reason: err.Error()}
	}
	n := 1
	if v := r.URL.Query().Get("row"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 || n > len(rows) {
			return nil, &record.ValidationError{
				Field:  "row",
				Reason: fmt.Sprintf("must be between 1 and %d", len(rows)),
			}
		}
	}
	return rows[n-1], nil
}

// Submit validates and persists the form: insert in NEW, update in EDITING.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SubmitRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid form", err)
		return
	}
	form := req.Form.ToForm()
	meta := reconcile.Meta{
		Responsible: normalize.String(req.Responsible),
		CreatedBy:   normalize.String(req.CreatedBy),
	}

	var (
		mode reconcile.Mode
		resp SubmitResponse
	)
	err := h.Sessions.With(id, func(st *reconcile.FormState) error {
		mode = st.Mode
		recID, err := h.Reconciler.Submit(r.Context(), st, form, meta)
		if err != nil {
			return err
		}
		resp = SubmitResponse{ID: recID, Action: action(mode), Session: toSessionDTO(id, *st, h.Units)}
		return nil
	})
	if mode != "" {
		h.Metrics.observeSubmit(mode, err)
	}
	if err != nil {
		h.fail(w, r, "Failed to save record", err)
		return
	}

	status := http.StatusOK
	if mode == reconcile.ModeNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func action(mode reconcile.Mode) string {
	if mode == reconcile.ModeNew {
		return "inserted"
	}
	return "updated"
}
