// Package spec embeds the OpenAPI document served at /openapi.yaml and
// rendered by the Swagger UI under /docs.
package spec

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
)

//go:embed openapi.yaml
var document []byte

var etag = func() string {
	sum := sha256.Sum256(document)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// Document returns a copy of the embedded OpenAPI document.
func Document() []byte {
	return append([]byte(nil), document...)
}

// OpenAPIHandler serves the embedded document with a content ETag so
// Swagger UI reloads are answered with 304.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(document)
	}
}
