package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"storefront/docs"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerDocumentsEveryRoute(t *testing.T) {
	app := newTestApplication(t, config{})
	routes, ok := app.mount().(chi.Routes)
	require.True(t, ok)

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))

	undocumented := []string{"/swagger/*", "/debug/vars"}

	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path := strings.TrimPrefix(route, "/v1")
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		for _, skip := range undocumented {
			if path == skip {
				return nil
			}
		}
		ops, found := doc.Paths[path]
		if assert.True(t, found, "%s %s has no swagger entry", method, path) {
			_, found = ops[strings.ToLower(method)]
			assert.True(t, found, "%s %s has no swagger operation", method, path)
		}
		return nil
	})
	require.NoError(t, err)
}
