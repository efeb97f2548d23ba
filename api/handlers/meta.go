package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/imageflow/dispatch"
	"github.com/BaSui01/imageflow/providers"
	"github.com/BaSui01/imageflow/providers/ark"
	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📋 Discovery endpoints
// =============================================================================

// MetaHandler serves the enumeration endpoints: generation types, supported
// sizes and models, and the system status summary.
type MetaHandler struct {
	dispatcher *dispatch.Dispatcher
	configs    *store.ConfigStore
	history    store.HistoryStore
	logger     *zap.Logger
	started    time.Time
}

func NewMetaHandler(dispatcher *dispatch.Dispatcher, configs *store.ConfigStore, history store.HistoryStore, logger *zap.Logger) *MetaHandler {
	return &MetaHandler{
		dispatcher: dispatcher,
		configs:    configs,
		history:    history,
		logger:     logger,
		started:    time.Now(),
	}
}

type generationTypeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var generationTypeInfos = []generationTypeInfo{
	{ID: string(types.TextToImage), Name: "Text to Image", Description: "Generate images from a text prompt"},
	{ID: string(types.ImageToImage), Name: "Image to Image", Description: "Transform a reference image guided by a prompt"},
	{ID: string(types.MultiImageFusion), Name: "Multi-Image Fusion", Description: "Fuse several reference images into one output"},
	{ID: string(types.BatchGeneration), Name: "Batch Generation", Description: "Generate several images from one prompt"},
	{ID: string(types.TextToBatch), Name: "Text to Batch", Description: "Generate a batch of variations from a text prompt"},
	{ID: string(types.ImageToBatch), Name: "Image to Batch", Description: "Generate a batch of variations from a reference image"},
	{ID: string(types.MultiReferenceBatch), Name: "Multi-Reference Batch", Description: "Generate a batch guided by several reference images"},
}

// GenerationTypes handles GET /api/generation-types.
func (h *MetaHandler) GenerationTypes(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, generationTypeInfos)
}

// activeAdapter resolves the adapter for the active configuration, falling
// back to a default primary-variant adapter when none is configured.
func (h *MetaHandler) activeAdapter(r *http.Request) providers.ImageProvider {
	adapter, _, err := h.dispatcher.ResolveAdapter(r.Context(), "")
	if err != nil {
		return ark.New(providers.ArkConfig{}, h.logger)
	}
	return adapter
}

// Sizes handles GET /api/sizes: the size allow-list of the active provider.
func (h *MetaHandler) Sizes(w http.ResponseWriter, r *http.Request) {
	adapter := h.activeAdapter(r)
	WriteSuccess(w, map[string]any{
		"provider": adapter.Name(),
		"sizes":    adapter.SupportedSizes(),
		"default":  providers.DefaultSize,
	})
}

// Models handles GET /api/models: the model list of the active provider.
func (h *MetaHandler) Models(w http.ResponseWriter, r *http.Request) {
	adapter := h.activeAdapter(r)
	WriteSuccess(w, map[string]any{
		"provider": adapter.Name(),
		"models":   adapter.SupportedModels(),
	})
}

// SystemStatus handles GET /api/system-status.
func (h *MetaHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
		"time":   time.Now(),
	}

	if h.configs != nil {
		if n, err := h.configs.Count(r.Context()); err == nil {
			status["config_count"] = n
		}
	}
	if h.history != nil {
		if n, err := h.history.Count(r.Context()); err == nil {
			status["history_count"] = n
		}
	}

	if adapter, cfg, err := h.dispatcher.ResolveAdapter(r.Context(), ""); err == nil {
		status["active_config"] = map[string]any{
			"id":       cfg.ID,
			"name":     cfg.Name,
			"provider": adapter.Name(),
		}
		status["supported_sizes"] = adapter.SupportedSizes()
		status["supported_models"] = adapter.SupportedModels()
	} else {
		status["active_config"] = nil
	}
	WriteSuccess(w, status)
}
