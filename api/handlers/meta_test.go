package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/imageflow/providers"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func get(t *testing.T, handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGenerationTypesEnumeration(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewMetaHandler(env.dispatcher, env.configs, env.history, zap.NewNop())

	rec := get(t, h.GenerationTypes, "/api/generation-types")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []generationTypeInfo
	decodeData(t, rec, &infos)
	require.Len(t, infos, len(types.GenerationTypes()))
	for i, typ := range types.GenerationTypes() {
		assert.Equal(t, string(typ), infos[i].ID)
		assert.NotEmpty(t, infos[i].Name)
		assert.NotEmpty(t, infos[i].Description)
	}
}

func TestSizesFallsBackWithoutActiveConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewMetaHandler(env.dispatcher, env.configs, env.history, zap.NewNop())

	rec := get(t, h.Sizes, "/api/sizes")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Provider string   `json:"provider"`
		Sizes    []string `json:"sizes"`
		Default  string   `json:"default"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, "ark", data.Provider)
	assert.Equal(t, providers.ArkSizes(), data.Sizes)
	assert.Equal(t, providers.DefaultSize, data.Default)
}

func TestModelsUsesActiveProvider(t *testing.T) {
	env := newTestEnv(t, okUpstream("https://img/1.png"))
	h := NewMetaHandler(env.dispatcher, env.configs, env.history, zap.NewNop())

	rec := get(t, h.Models, "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Provider string   `json:"provider"`
		Models   []string `json:"models"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, "ark", data.Provider)
	assert.NotEmpty(t, data.Models)
}

func TestSystemStatusReportsActiveConfig(t *testing.T) {
	env := newTestEnv(t, okUpstream("https://img/1.png"))
	h := NewMetaHandler(env.dispatcher, env.configs, env.history, zap.NewNop())

	rec := get(t, h.SystemStatus, "/api/system-status")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status          string         `json:"status"`
		ConfigCount     int64          `json:"config_count"`
		HistoryCount    int64          `json:"history_count"`
		SupportedSizes  []string       `json:"supported_sizes"`
		SupportedModels []string       `json:"supported_models"`
		ActiveConfig    map[string]any `json:"active_config"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, int64(1), data.ConfigCount)
	assert.Equal(t, int64(0), data.HistoryCount)
	assert.NotEmpty(t, data.SupportedSizes)
	assert.NotEmpty(t, data.SupportedModels)
	require.NotNil(t, data.ActiveConfig)
	assert.Equal(t, env.activeID, data.ActiveConfig["id"])
	assert.Equal(t, "ark", data.ActiveConfig["provider"])
}
