package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/address"
	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/batch"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/history"
	"github.com/ppiankov/transferguard/internal/safety"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	svc *guard.Service
	log *logrus.Entry
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrInvalidRequest), errors.Is(err, approval.ErrInvalidKey):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, approval.ErrNotFound), errors.Is(err, history.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).Error("request failed")
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"policy_hash": h.svc.PolicyHash(),
		"strict_mode": h.svc.Protocol().StrictMode(),
	})
}

// --- Validate ---

func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req guard.Request
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// --- Batch ---

type batchRequest struct {
	Transfers   []guard.Request `json:"transfers"`
	Concurrency int             `json:"concurrency"`
}

func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Transfers) == 0 {
		h.writeError(w, http.StatusBadRequest, "transfers is required")
		return
	}

	results, err := h.svc.HandleBatch(r.Context(), req.Transfers, req.Concurrency)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	reports := make([]*safety.Report, len(results))
	for i, res := range results {
		reports[i] = res.Report
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"summary": batch.Summarize(reports),
	})
}

// --- Address tools ---

func (h *Handlers) VerifyAddress(w http.ResponseWriter, r *http.Request) {
	v, err := address.VerifyFull(chi.URLParam(r, "address"))
	if err != nil {
		resp := map[string]any{"is_valid": false, "error": err.Error()}
		var aerr *address.Error
		if errors.As(err, &aerr) {
			resp["kind"] = aerr.Kind.String()
		}
		h.writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) CompareAddresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("a") == "" || q.Get("b") == "" {
		h.writeError(w, http.StatusBadRequest, "a and b are required")
		return
	}
	h.writeJSON(w, http.StatusOK, address.Compare(q.Get("a"), q.Get("b")))
}

// --- Confirmations ---

func (h *Handlers) approvals(w http.ResponseWriter) *approval.Store {
	st := h.svc.Approvals()
	if st == nil {
		h.writeError(w, http.StatusNotImplemented, "confirmations are not enabled")
	}
	return st
}

func (h *Handlers) ListPending(w http.ResponseWriter, r *http.Request) {
	st := h.approvals(w)
	if st == nil {
		return
	}
	list, err := st.List()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []approval.Approval{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	st := h.approvals(w)
	if st == nil {
		return
	}
	key := chi.URLParam(r, "key")

	var duration time.Duration
	if s := r.URL.Query().Get("duration"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid duration: "+s)
			return
		}
		duration = d
	}

	if err := st.Approve(key, duration); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": string(approval.StatusApproved)})
}

func (h *Handlers) Deny(w http.ResponseWriter, r *http.Request) {
	st := h.approvals(w)
	if st == nil {
		return
	}
	key := chi.URLParam(r, "key")
	if err := st.Deny(key); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": string(approval.StatusDenied)})
}

// --- History ---

func (h *Handlers) history(w http.ResponseWriter) *history.Store {
	st := h.svc.History()
	if st == nil {
		h.writeError(w, http.StatusNotImplemented, "history is not enabled")
	}
	return st
}

func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	st := h.history(w)
	if st == nil {
		return
	}
	q := r.URL.Query()
	query := history.Query{
		Address:  q.Get("address"),
		Decision: q.Get("decision"),
		Since:    parseTime(q.Get("since")),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	records, err := st.List(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"limit":   query.Limit,
	})
}

func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	st := h.history(w)
	if st == nil {
		return
	}
	rec, err := st.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st := h.history(w)
	if st == nil {
		return
	}
	stats, err := st.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
