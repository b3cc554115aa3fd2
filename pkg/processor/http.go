package processor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/common/models"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/map/report", h.handleMapReport).Methods(http.MethodPost)
	router.HandleFunc("/map/specimen", h.handleMapSpecimen).Methods(http.MethodPost)
	router.HandleFunc("/records/{kind}/{id:.+}/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/records/{kind}/{id:.+}/rejections", h.handleRejections).Methods(http.MethodGet)
}

type errorResponse struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (h *HTTPHandler) handleMapReport(w http.ResponseWriter, r *http.Request) {
	var rec pathology.Report
	if !h.decode(w, r, &rec) {
		return
	}
	b, err := h.service.Engine().MapReport(r.Context(), &rec)
	h.respond(w, b, err)
}

func (h *HTTPHandler) handleMapSpecimen(w http.ResponseWriter, r *http.Request) {
	var rec pathology.Specimen
	if !h.decode(w, r, &rec) {
		return
	}
	b, err := h.service.Engine().MapSpecimen(r.Context(), &rec)
	h.respond(w, b, err)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	var body io.Reader = r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(body).Decode(into); err != nil {
		logger.Log.WithError(err).Warn("invalid mapping payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *HTTPHandler) respond(w http.ResponseWriter, b interface{}, err error) {
	if err != nil {
		if pathology.IsRejection(err) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Kind: pathology.RejectionKind(err), Reason: err.Error()})
			return
		}
		logger.Log.WithError(err).Error("failed to map record")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := recordPath(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.Status(r.Context(), kind, id)
	if err != nil {
		lookupError(w, err, "failed to fetch record status")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *HTTPHandler) handleRejections(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := recordPath(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Rejections(r.Context(), kind, id)
	if err != nil {
		lookupError(w, err, "failed to list record rejections")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func recordPath(w http.ResponseWriter, r *http.Request) (models.RecordKind, string, bool) {
	vars := mux.Vars(r)
	kind := models.RecordKind(vars["kind"])
	if kind != models.RecordKindReport && kind != models.RecordKindSpecimen {
		http.Error(w, "unknown record kind", http.StatusBadRequest)
		return "", "", false
	}
	return kind, vars["id"], true
}

func lookupError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	logger.Log.WithError(err).Error(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
