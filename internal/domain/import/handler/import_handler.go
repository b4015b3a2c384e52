// Package handler exposes the import pipeline over HTTP/JSON. Routes are
// session-scoped: a client opens a session, walks it through upload, mapping,
// review and commit, and closes it.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	importservice "github.com/FACorreiaa/portfolio-importer/internal/domain/import/service"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/wizard"
)

// maxUploadBytes caps a single broker export upload.
const maxUploadBytes = 32 << 20

// ImportHandler handles the import wizard routes.
type ImportHandler struct {
	importSvc *importservice.ImportService
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// NewImportHandler creates the handler. The limiter throttles the whole
// import surface; uploads and ledger-bound calls are not cheap.
func NewImportHandler(importSvc *importservice.ImportService, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{
		importSvc: importSvc,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(20), 40),
	}
}

// WithRateLimit overrides the default request throttle.
func (h *ImportHandler) WithRateLimit(perSecond, burst int) *ImportHandler {
	h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return h
}

// RegisterRoutes mounts the import routes on a router.
func (h *ImportHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/import").Subrouter()
	api.Use(h.throttle)

	api.HandleFunc("/sessions", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.getState).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.closeSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/file", h.uploadFile).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/parse-config", h.updateParseConfig).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/mapping", h.saveMapping).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/drafts", h.buildDrafts).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/duplicates", h.checkDuplicates).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/validate", h.crossValidate).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/drafts/{row}", h.updateDraft).Methods(http.MethodPatch)
	api.HandleFunc("/sessions/{id}/drafts/bulk", h.bulkUpdate).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/commit", h.commit).Methods(http.MethodPost)
}

func (h *ImportHandler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ImportHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID uuid.UUID `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.importSvc.StartSession(r.Context(), req.AccountID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"session_id": id.String()})
}

func (h *ImportHandler) getState(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.importSvc.State(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) closeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.importSvc.CloseSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// uploadFile accepts the raw export bytes. Multipart is supported under the
// "file" field; anything else is read as the request body with the filename
// taken from ?filename=.
func (h *ImportHandler) uploadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	fileName, data, err := readUpload(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.importSvc.AnalyzeFile(r.Context(), id, fileName, data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) updateParseConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var cfg sniffer.ParseConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.importSvc.UpdateParseConfig(r.Context(), id, cfg)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) saveMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var m mapping.ImportMapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := h.importSvc.SaveMapping(r.Context(), id, &m)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *ImportHandler) buildDrafts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.importSvc.BuildDrafts(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.importSvc.CheckDuplicates(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) crossValidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.importSvc.CrossValidate(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	row, err := strconv.Atoi(mux.Vars(r)["row"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid row index"))
		return
	}

	var patch wizard.DraftPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	st, err := h.importSvc.UpdateDraft(id, row, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Op         string            `json:"op"` // update, skip, unskip
		RowIndexes []int             `json:"row_indexes"`
		Patch      wizard.DraftPatch `json:"patch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		st  wizard.State
		err error
	)
	switch req.Op {
	case "skip":
		st, err = h.importSvc.SkipRows(id, req.RowIndexes)
	case "unskip":
		st, err = h.importSvc.UnskipRows(id, req.RowIndexes)
	case "update", "":
		st, err = h.importSvc.BulkUpdate(id, req.RowIndexes, req.Patch)
	default:
		h.writeError(w, http.StatusBadRequest, errors.New("unknown bulk op "+req.Op))
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse(st))
}

func (h *ImportHandler) commit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.importSvc.Commit(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// StateResponse is the review-facing view of a session: everything the
// wizard UI renders, without the raw table bytes.
type StateResponse struct {
	Step       wizard.Step             `json:"step"`
	FileName   string                  `json:"file_name,omitempty"`
	Generation uint64                  `json:"generation"`
	Drafts     []activity.Draft        `json:"drafts"`
	Counts     map[activity.Status]int `json:"counts"`
	Duplicates map[string]string       `json:"duplicates,omitempty"`
	Result     *activity.ImportResult  `json:"result,omitempty"`
}

func stateResponse(st wizard.State) StateResponse {
	return StateResponse{
		Step:       st.Step,
		FileName:   st.FileName,
		Generation: st.Generation,
		Drafts:     st.Drafts,
		Counts:     st.StatusCounts(),
		Duplicates: st.Duplicates,
		Result:     st.Result,
	}
}

func (h *ImportHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func readUpload(r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		return header.Filename, data, err
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.csv"
	}
	return name, data, nil
}

func (h *ImportHandler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, importservice.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	h.writeError(w, status, err)
}

func (h *ImportHandler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("import request failed", slog.Any("error", err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *ImportHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
