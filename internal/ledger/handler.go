package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/JonMunkholm/txnimport/internal/web/middleware"
)

// MaxBatchBytes bounds a batch request body; receipts travel inline.
const MaxBatchBytes = 64 << 20

// MaxBatchRows bounds the number of rows accepted in one request.
const MaxBatchRows = 10000

// Handler serves the batch endpoint.
type Handler struct {
	store   BatchInserter
	apiKeys []string
	timeout time.Duration
}

// NewHandler creates a handler. An empty apiKeys disables authentication.
func NewHandler(store BatchInserter, apiKeys []string, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Handler{store: store, apiKeys: apiKeys, timeout: timeout}
}

// Routes returns the endpoint's router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(h.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(len(h.apiKeys) > 0, h.apiKeys))
		r.Post("/api/transactions/batch", h.handleBatch)
	})
	return r
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req struct {
		Rows json.RawMessage `json:"rows"`
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBatchBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch body")
		return
	}

	rows, err := decodeRows(req.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.store.InsertBatch(r.Context(), rows)
	if err != nil {
		logger.Error("insert batch failed", "rows", len(rows), "error", err)
		writeError(w, http.StatusInternalServerError, "batch could not be stored")
		return
	}

	logger.Info("batch stored",
		"rows", len(rows),
		"imported", len(resp.Imported),
		"errored", len(resp.Errored),
	)
	writeJSON(w, http.StatusOK, resp)
}

var (
	errMissingRows = errors.New("rows is required")
	errTooManyRows = errors.New("too many rows in batch")
)

func decodeRows(raw json.RawMessage) ([]core.SubmitRow, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errMissingRows
	}
	var rows []core.SubmitRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errors.New("rows must be an array of transactions")
	}
	if len(rows) > MaxBatchRows {
		return nil, errTooManyRows
	}
	return rows, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
