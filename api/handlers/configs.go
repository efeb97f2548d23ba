package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/imageflow/dispatch"
	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// ⚙️ Provider configuration endpoints
// =============================================================================

// ConfigHandler serves CRUD on provider configurations plus the
// connectivity test probe.
type ConfigHandler struct {
	configs    *store.ConfigStore
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewConfigHandler(configs *store.ConfigStore, dispatcher *dispatch.Dispatcher, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{configs: configs, dispatcher: dispatcher, logger: logger}
}

// configPayload is the create body; headers ride as a plain map.
type configPayload struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	APIKey   string            `json:"api_key"`
	Headers  map[string]string `json:"headers,omitempty"`
	Model    string            `json:"model,omitempty"`
	IsActive bool              `json:"is_active,omitempty"`
}

// List handles GET /api/configs.
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.List(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, configs)
}

// Create handles POST /api/configs.
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := DecodeJSONBody(w, r, &payload, h.logger); err != nil {
		return
	}

	cfg := &store.ProviderConfig{
		Name:     payload.Name,
		URL:      payload.URL,
		APIKey:   payload.APIKey,
		Model:    payload.Model,
		IsActive: payload.IsActive,
	}
	cfg.SetHeaderMap(payload.Headers)

	if err := h.configs.Create(r.Context(), cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: cfg, Timestamp: time.Now()})
}

// Get handles GET /api/configs/{id}.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}

// Update handles PUT /api/configs/{id}. Absent fields keep their value.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd store.ConfigUpdate
	if err := DecodeJSONBody(w, r, &upd, h.logger); err != nil {
		return
	}

	cfg, err := h.configs.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}

// Delete handles DELETE /api/configs/{id}.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.configs.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": r.PathValue("id")})
}

// testResult is the probe outcome. A failed probe is still a 200: the probe
// completed, the upstream just said no.
type testResult struct {
	Reachable bool   `json:"reachable"`
	Provider  string `json:"provider"`
	Message   string `json:"message,omitempty"`
}

// Test handles POST /api/configs/test: issue a minimal generation against
// the submitted (not necessarily stored) configuration.
func (h *ConfigHandler) Test(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := DecodeJSONBody(w, r, &payload, h.logger); err != nil {
		return
	}
	if payload.URL == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "url is required", h.logger)
		return
	}

	cfg := &store.ProviderConfig{
		Name:   payload.Name,
		URL:    payload.URL,
		APIKey: payload.APIKey,
		Model:  payload.Model,
	}
	cfg.SetHeaderMap(payload.Headers)
	adapter := h.dispatcher.AdapterFor(cfg)

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	probe := &types.GenerationRequest{
		Prompt: "connectivity test",
		Type:   types.TextToImage,
		Params: types.GenerationParams{Width: 1024, Height: 1024, BatchSize: 1},
	}
	if _, err := adapter.Generate(ctx, probe); err != nil {
		WriteSuccess(w, testResult{Reachable: false, Provider: adapter.Name(), Message: err.Error()})
		return
	}
	WriteSuccess(w, testResult{Reachable: true, Provider: adapter.Name()})
}
