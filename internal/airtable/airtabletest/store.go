package airtabletest

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
)

const defaultPageSize = airtable.MaxPageSize

// Store keeps the rows of a single fake table in insertion order and guards
// access with a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]airtable.Record
	order   []string
	clock   func() time.Time
}

// NewStore creates an empty table.
func NewStore() *Store {
	return &Store{
		records: make(map[string]airtable.Record),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Insert stores a new record and returns a copy of it.
func (s *Store) Insert(fields airtable.Fields) airtable.Record {
	created := strfmt.DateTime(s.clock().Truncate(time.Millisecond))
	rec := airtable.Record{
		ID:          newRecordID(),
		CreatedTime: &created,
		Fields:      fields.Clone(),
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()

	return cloneRecord(rec)
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (airtable.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return airtable.Record{}, false
	}
	return cloneRecord(rec), true
}

// Patch merges fields into an existing record.
func (s *Store) Patch(id string, fields airtable.Fields) (airtable.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return airtable.Record{}, false
	}
	merged := rec.Fields.Clone()
	for name, v := range fields.All() {
		merged.Set(name, v)
	}
	rec.Fields = merged
	s.records[id] = rec
	return cloneRecord(rec), true
}

// Delete removes a record. It reports whether the record existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = make(map[string]airtable.Record)
	s.order = nil
	s.mu.Unlock()
}

// Page returns up to pageSize records starting at offset. maxRecords caps the
// total number of records handed out across all pages of a listing, which
// works because pages are always read front to back.
func (s *Store) Page(offset string, pageSize, maxRecords int) ([]airtable.Record, string, bool) {
	start := 0
	if offset != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(offset, "itr"))
		if err != nil || n < 0 {
			return nil, "", false
		}
		start = n
	}
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := len(s.order)
	if maxRecords > 0 && maxRecords < limit {
		limit = maxRecords
	}
	if start > limit {
		start = limit
	}
	end := min(start+pageSize, limit)

	out := make([]airtable.Record, 0, end-start)
	for _, id := range s.order[start:end] {
		out = append(out, cloneRecord(s.records[id]))
	}

	next := ""
	if end < limit {
		next = "itr" + strconv.Itoa(end)
	}
	return out, next, true
}

func cloneRecord(rec airtable.Record) airtable.Record {
	rec.Fields = rec.Fields.Clone()
	if rec.CreatedTime != nil {
		created := *rec.CreatedTime
		rec.CreatedTime = &created
	}
	return rec
}

func newRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
