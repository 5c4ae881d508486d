// Package airtabletest provides an in-process fake of the Airtable record
// API for tests. It serves a single base/table pair from memory and supports
// per-operation fault injection.
package airtabletest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
)

// Default identifiers served by a Server.
const (
	APIKey  = "patTestKey.0000"
	BaseID  = "appTestBase0001"
	TableID = "tblTestTable001"
)

// Operation names accepted by Fail.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
)

// Fault describes an injected upstream failure.
type Fault struct {
	StatusCode int
	Type       string
	Message    string
}

// Server is a running fake Airtable API. Close it when done.
type Server struct {
	*httptest.Server
	Store *Store

	apiKey  string
	baseID  string
	tableID string

	mu     sync.RWMutex
	faults map[string]Fault
	hits   atomic.Int64
}

// NewServer starts a fake serving BaseID/TableID and accepting APIKey.
func NewServer() *Server {
	s := &Server{
		Store:   NewStore(),
		apiKey:  APIKey,
		baseID:  BaseID,
		tableID: TableID,
		faults:  make(map[string]Fault),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root to hand to airtable.WithBaseURL.
func (s *Server) BaseURL() string {
	return s.URL + "/v0"
}

// Client returns an airtable client already pointed at s.
func (s *Server) Client(opts ...airtable.Option) *airtable.Client {
	opts = append([]airtable.Option{airtable.WithBaseURL(s.BaseURL())}, opts...)
	return airtable.NewClient(s.apiKey, opts...)
}

// Table returns a handle to the served table.
func (s *Server) Table(opts ...airtable.Option) *airtable.Table {
	return s.Client(opts...).Table(s.baseID, s.tableID)
}

// Fail makes every subsequent call of op answer with fault.
func (s *Server) Fail(op string, fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault
}

// ClearFaults removes all injected faults.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]Fault)
}

// Hits returns how many requests reached the record routes.
func (s *Server) Hits() int64 {
	return s.hits.Load()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/v0/{baseID}/{tableID}", func(r chi.Router) {
		r.Use(s.count)
		r.Use(s.auth)
		r.Use(s.scope)

		r.With(s.inject(OpList)).Get("/", s.handleList)
		r.With(s.inject(OpCreate)).Post("/", s.handleCreate)
		r.With(s.inject(OpGet)).Get("/{recordID}", s.handleGet)
		r.With(s.inject(OpUpdate)).Patch("/{recordID}", s.handleUpdate)
		r.With(s.inject(OpDelete)).Delete("/{recordID}", s.handleDelete)
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Authentication required")
			return
		}
		if token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Invalid authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// scope rejects unknown bases and tables with the bare-string error shape.
func (s *Server) scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "baseID") != s.baseID || chi.URLParam(r, "tableID") != s.tableID {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.RLock()
			fault, ok := s.faults[op]
			s.mu.RUnlock()
			if ok {
				status := fault.StatusCode
				if status == 0 {
					status = http.StatusInternalServerError
				}
				writeError(w, status, fault.Type, fault.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type writeBody struct {
	Fields   airtable.Fields `json:"fields"`
	Typecast bool            `json:"typecast"`
}

func decodeWriteBody(r *http.Request) (airtable.Fields, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return airtable.Fields{}, err
	}
	var body writeBody
	if err := json.Unmarshal(data, &body); err != nil {
		return airtable.Fields{}, err
	}
	return body.Fields, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeWriteBody(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_UNKNOWN", "Invalid request: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Store.Insert(fields))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	rec, ok := s.Store.Get(id)
	if !ok {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	fields, err := decodeWriteBody(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_UNKNOWN", "Invalid request: "+err.Error())
		return
	}
	rec, ok := s.Store.Patch(id, fields)
	if !ok {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	if !s.Store.Delete(id) {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, airtable.DeletedRecord{ID: id, Deleted: true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize, err := optionalInt(q.Get("pageSize"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_UNKNOWN", "Invalid pageSize")
		return
	}
	maxRecords, err := optionalInt(q.Get("maxRecords"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_UNKNOWN", "Invalid maxRecords")
		return
	}

	records, next, ok := s.Store.Page(q.Get("offset"), pageSize, maxRecords)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "LIST_RECORDS_ITERATOR_NOT_AVAILABLE", "Invalid offset")
		return
	}
	writeJSON(w, http.StatusOK, airtable.RecordPage{Records: records, Offset: next})
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, "MODEL_ID_NOT_FOUND", fmt.Sprintf("Could not find a record with ID %q.", id))
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
