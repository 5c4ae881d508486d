package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
)

const defaultMaxBodyBytes int64 = 1 << 20

const deletedMessage = "Record deleted successfully"

// RecordService is the record-access layer the handlers delegate to.
type RecordService interface {
	Create(ctx context.Context, fields airtable.Fields) (*airtable.Record, error)
	Get(ctx context.Context, id string) (*airtable.Record, error)
	Update(ctx context.Context, id string, fields airtable.Fields) (*airtable.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, maxRecords int) (*airtable.RecordPage, error)
}

// Handler exposes record operations over HTTP.
type Handler struct {
	records      RecordService
	logger       *zap.Logger
	maxBodyBytes int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithMaxBodyBytes caps the size of request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(records RecordService, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		records:      records,
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.readFields(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Create(r.Context(), fields)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rec)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")
	fields, ok := h.readFields(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Update(r.Context(), id, fields)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rec)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")

	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rec)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")

	if _, err := h.records.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, messageResponse{Message: deletedMessage})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	maxRecords := 0
	if raw := r.URL.Query().Get("max_records"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "max_records must be an integer")
			return
		}
		// Zero or negative means no limit.
		if n > 0 {
			maxRecords = n
		}
	}

	page, err := h.records.List(r.Context(), maxRecords)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, page)
}

// readFields decodes the request body into a field map. On failure it writes
// the response and returns false.
func (h *Handler) readFields(w http.ResponseWriter, r *http.Request) (airtable.Fields, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return airtable.Fields{}, false
		}
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return airtable.Fields{}, false
	}

	fields, err := airtable.DecodeFields(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return airtable.Fields{}, false
	}
	return fields, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("record operation failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Bool("upstream_not_found", errors.Is(err, airtable.ErrNotFound)),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// respond writes payload and logs an encode failure.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		h.logger.Error("encode response failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
}

// writeJSON encodes payload before committing status. If encoding fails
// nothing of payload is written; the client gets a 500 detail envelope and
// the error is returned.
func writeJSON(w http.ResponseWriter, status int, payload any) error {
	body, err := encodeJSON(payload)
	if err != nil {
		err = fmt.Errorf("encode response: %w", err)
		body, _ = encodeJSON(errorResponse{Detail: err.Error()})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(body)
	return err
}

func encodeJSON(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	_ = writeJSON(w, status, errorResponse{Detail: detail})
}
