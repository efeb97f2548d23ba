package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/imageflow/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func configMux(h *ConfigHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/configs", h.List)
	mux.HandleFunc("POST /api/configs", h.Create)
	mux.HandleFunc("POST /api/configs/test", h.Test)
	mux.HandleFunc("GET /api/configs/{id}", h.Get)
	mux.HandleFunc("PUT /api/configs/{id}", h.Update)
	mux.HandleFunc("DELETE /api/configs/{id}", h.Delete)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, "body=%s", rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func TestConfigEndpointsCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	mux := configMux(NewConfigHandler(env.configs, env.dispatcher, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodPost, "/api/configs",
		`{"name":"primary","url":"https://ark.example.com/api/v3","api_key":"sk-1","model":"doubao","is_active":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.ProviderConfig
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, mux, http.MethodGet, "/api/configs/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched store.ProviderConfig
	decodeData(t, rec, &fetched)
	assert.Equal(t, "primary", fetched.Name)
	assert.Equal(t, "https://ark.example.com/api/v3", fetched.URL)
	assert.True(t, fetched.IsActive)

	// Partial update: only the name changes.
	rec = doJSON(t, mux, http.MethodPut, "/api/configs/"+created.ID, `{"name":"renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated store.ProviderConfig
	decodeData(t, rec, &updated)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "https://ark.example.com/api/v3", updated.URL)
	assert.Equal(t, "sk-1", updated.APIKey)

	rec = doJSON(t, mux, http.MethodDelete, "/api/configs/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/configs/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigCreateValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	mux := configMux(NewConfigHandler(env.configs, env.dispatcher, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodPost, "/api/configs", `{"name":"no-url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigTestProbe(t *testing.T) {
	env := newTestEnv(t, okUpstream("https://img/1.png"))
	mux := configMux(NewConfigHandler(env.configs, env.dispatcher, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodPost, "/api/configs/test",
		`{"url":"`+env.upstream.URL+`","api_key":"sk-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result testResult
	decodeData(t, rec, &result)
	assert.True(t, result.Reachable)
	assert.Equal(t, "ark", result.Provider)
}

func TestConfigTestProbeUnreachable(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})
	mux := configMux(NewConfigHandler(env.configs, env.dispatcher, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodPost, "/api/configs/test",
		`{"url":"`+env.upstream.URL+`","api_key":"wrong"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result testResult
	decodeData(t, rec, &result)
	assert.False(t, result.Reachable)
	assert.Contains(t, result.Message, "bad key")
}
