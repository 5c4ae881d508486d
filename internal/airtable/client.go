package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Airtable REST endpoint.
	DefaultBaseURL = "https://api.airtable.com/v0"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 16 << 20
)

// Client performs authenticated calls against the Airtable REST API. It is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	typecast   bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the overall timeout of every upstream request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTypecast asks Airtable to coerce string values into the column types
// on create and update.
func WithTypecast(enabled bool) Option {
	return func(c *Client) {
		c.typecast = enabled
	}
}

// NewClient creates a Client authenticating with the given personal access
// token.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table returns a handle to one table of one base.
func (c *Client) Table(baseID, tableID string) *Table {
	return &Table{
		client: c,
		path:   "/" + url.PathEscape(baseID) + "/" + url.PathEscape(tableID),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Table addresses the records of a single Airtable table.
type Table struct {
	client *Client
	path   string
}

// Create inserts a record with the given fields.
func (t *Table) Create(ctx context.Context, fields Fields) (*Record, error) {
	var rec Record
	req := writeRequest{Fields: fields, Typecast: t.client.typecast}
	if err := t.client.do(ctx, http.MethodPost, t.path, nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get fetches a record by id.
func (t *Table) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := t.client.do(ctx, http.MethodGet, t.recordPath(id), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update sets the given fields on a record, leaving other fields untouched.
func (t *Table) Update(ctx context.Context, id string, fields Fields) (*Record, error) {
	var rec Record
	req := writeRequest{Fields: fields, Typecast: t.client.typecast}
	if err := t.client.do(ctx, http.MethodPatch, t.recordPath(id), nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record by id.
func (t *Table) Delete(ctx context.Context, id string) (*DeletedRecord, error) {
	var ack DeletedRecord
	if err := t.client.do(ctx, http.MethodDelete, t.recordPath(id), nil, nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ListPage fetches a single page of records.
func (t *Table) ListPage(ctx context.Context, params ListParams) (*RecordPage, error) {
	query := url.Values{}
	if params.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(min(params.PageSize, MaxPageSize)))
	}
	if params.MaxRecords > 0 {
		query.Set("maxRecords", strconv.Itoa(params.MaxRecords))
	}
	if params.Offset != "" {
		query.Set("offset", params.Offset)
	}
	if params.View != "" {
		query.Set("view", params.View)
	}

	var page RecordPage
	if err := t.client.do(ctx, http.MethodGet, t.path, query, nil, &page); err != nil {
		return nil, err
	}
	if page.Records == nil {
		page.Records = []Record{}
	}
	return &page, nil
}

// All follows offsets until the table is exhausted or maxRecords records
// have been read. A maxRecords of zero means no limit. The returned page
// carries the offset that was left unfollowed, if any.
func (t *Table) All(ctx context.Context, maxRecords int) (*RecordPage, error) {
	out := &RecordPage{Records: []Record{}}
	params := ListParams{MaxRecords: maxRecords}

	for {
		page, err := t.ListPage(ctx, params)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, page.Records...)

		if maxRecords > 0 && len(out.Records) >= maxRecords {
			out.Records = out.Records[:maxRecords]
			out.Offset = page.Offset
			return out, nil
		}
		if page.Offset == "" {
			return out, nil
		}
		params.Offset = page.Offset
	}
}

func (t *Table) recordPath(id string) string {
	return t.path + "/" + url.PathEscape(id)
}
