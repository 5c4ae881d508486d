package airtable

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/valyala/fastjson"
)

var (
	// ErrNotFound matches upstream 404 responses.
	ErrNotFound = errors.New("airtable: not found")
	// ErrUnauthorized matches upstream 401 and 403 responses.
	ErrUnauthorized = errors.New("airtable: unauthorized")
	// ErrInvalidRequest matches upstream 400 and 422 responses.
	ErrInvalidRequest = errors.New("airtable: invalid request")
	// ErrRateLimited matches upstream 429 responses.
	ErrRateLimited = errors.New("airtable: rate limited")
	// ErrNotObject is returned when a field map payload is not a JSON object.
	ErrNotObject = errors.New("fields must be a JSON object")
)

const maxErrorBodyExcerpt = 200

// APIError is a non-2xx response from the Airtable API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	status := fmt.Sprintf("airtable API error %d", e.StatusCode)
	switch {
	case e.Type != "" && e.Message != "":
		return fmt.Sprintf("%s (%s): %s", status, e.Type, e.Message)
	case e.Type != "":
		return fmt.Sprintf("%s (%s)", status, e.Type)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", status, e.Message)
	default:
		return fmt.Sprintf("%s: %s", status, http.StatusText(e.StatusCode))
	}
}

// Is maps the status code onto the package sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// decodeAPIError accepts both error shapes Airtable emits:
// {"error":"NOT_FOUND"} and {"error":{"type":"...","message":"..."}}.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		apiErr.Message = excerpt(body)
		return apiErr
	}

	errVal := v.Get("error")
	if errVal == nil {
		return apiErr
	}
	switch errVal.Type() {
	case fastjson.TypeString:
		b, _ := errVal.StringBytes()
		apiErr.Type = string(b)
	case fastjson.TypeObject:
		apiErr.Type = string(errVal.GetStringBytes("type"))
		apiErr.Message = string(errVal.GetStringBytes("message"))
	}
	return apiErr
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyExcerpt {
		s = s[:maxErrorBodyExcerpt] + "..."
	}
	return s
}
