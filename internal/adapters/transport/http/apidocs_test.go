package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Miraines/MoonyAndStarry/revocation-service/api/openapi"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newDocsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	docs, err := NewAPIDocs(openapi.Swagger)
	require.NoError(t, err)
	r := gin.New()
	RegisterAPIDocs(r, docs)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAPIDocs_Swagger(t *testing.T) {
	w := get(newDocsRouter(t), "/swagger.json")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var doc struct {
		Swagger string                     `json:"swagger"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, "2.0", doc.Swagger)
	for _, p := range []string{"/revocations", "/revocations/batch", "/health"} {
		require.Contains(t, doc.Paths, p)
	}
}

func TestAPIDocs_SchemaDiscovery(t *testing.T) {
	w := get(newDocsRouter(t), "/.well-known/schema-discovery")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"schema_url":"/swagger.json","schema_type":"swagger-2.0"}`, w.Body.String())
}

func TestNewAPIDocs_Rejects(t *testing.T) {
	_, err := NewAPIDocs([]byte("paths: [unclosed"))
	require.Error(t, err)
	_, err = NewAPIDocs([]byte("info:\n  title: x\n"))
	require.Error(t, err)
}
