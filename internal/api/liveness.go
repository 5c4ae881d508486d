package api

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/valyala/fastjson"
)

const welcomeMessage = "Welcome to Property Creator API"

//go:embed openapi.json
var openAPITemplate []byte

// Welcome answers the root path.
func Welcome(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, messageResponse{Message: welcomeMessage})
}

// Health reports liveness. It never touches the upstream.
func Health(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}

// OpenAPI serves a static OpenAPI document titled after the project, with
// the record routes placed under apiPrefix.
func OpenAPI(title, apiPrefix string) (http.HandlerFunc, error) {
	doc, err := renderOpenAPI(title, apiPrefix)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}, nil
}

func renderOpenAPI(title, apiPrefix string) ([]byte, error) {
	var p fastjson.Parser
	doc, err := p.ParseBytes(openAPITemplate)
	if err != nil {
		return nil, fmt.Errorf("parse openapi template: %w", err)
	}

	var a fastjson.Arena
	doc.Get("info").Set("title", a.NewString(title))

	paths, err := doc.Get("paths").Object()
	if err != nil {
		return nil, fmt.Errorf("openapi template paths: %w", err)
	}
	rewritten := a.NewObject()
	paths.Visit(func(key []byte, v *fastjson.Value) {
		path := string(key)
		if strings.HasPrefix(path, "/airtable") {
			path = apiPrefix + path
		}
		rewritten.Set(path, v)
	})
	doc.Set("paths", rewritten)

	return doc.MarshalTo(nil), nil
}
