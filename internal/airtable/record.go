package airtable

import "github.com/go-openapi/strfmt"

// MaxPageSize is the largest page Airtable returns for a list request.
const MaxPageSize = 100

// Record is one row of an Airtable table. CreatedTime is decoded and
// re-encoded in RFC 3339 with milliseconds, the layout Airtable emits, so
// upstream timestamps pass through unchanged.
type Record struct {
	ID          string           `json:"id"`
	CreatedTime *strfmt.DateTime `json:"createdTime,omitempty"`
	Fields      Fields           `json:"fields"`
}

// DeletedRecord is the acknowledgement returned by a delete call.
type DeletedRecord struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// RecordPage is one page of a list call. Offset is set when more records
// are available upstream.
type RecordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListParams controls a single list request. Zero values are omitted.
type ListParams struct {
	PageSize   int
	MaxRecords int
	Offset     string
	View       string
}

type writeRequest struct {
	Fields   Fields `json:"fields"`
	Typecast bool   `json:"typecast,omitempty"`
}
