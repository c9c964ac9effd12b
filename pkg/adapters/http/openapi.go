package http

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agent2000/agent2000/pkg/apperr"
	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// bodySchema returns the JSON request schema of the operation, or nil.
func bodySchema(doc *openapi3.T, path, method string) *openapi3.Schema {
	item := doc.Paths.Find(path)
	if item == nil {
		return nil
	}
	op := item.GetOperation(method)
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

// validateBody checks the request body against schema before the handler runs.
// The body is replayed to the handler unchanged.
func (s *Server) validateBody(schema *openapi3.Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if schema == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				s.writeError(w, apperr.Validation("failed to read request body", apperr.WithCause(err)))
				return
			}
			if len(raw) > maxBodyBytes {
				s.writeError(w, apperr.Validation("request body too large", apperr.WithDetail("limit", maxBodyBytes)))
				return
			}
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				s.writeError(w, apperr.Validation("invalid JSON body", apperr.WithCause(err)))
				return
			}
			if err := schema.VisitJSON(value); err != nil {
				s.writeError(w, apperr.Validation("request does not match schema", apperr.WithCause(err),
					apperr.WithDetail("reason", err.Error())))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			next.ServeHTTP(w, r)
		})
	}
}

// ServeSpec writes the raw document.
func (s *Server) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.Write(rawSpec)
}

// ServeSwagger serves a Swagger UI pointed at /openapi.yaml.
func (s *Server) ServeSwagger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(swaggerHTML))
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>agent2000 API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
