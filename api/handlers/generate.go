package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BaSui01/imageflow/dispatch"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🖼️ Generation endpoints
// =============================================================================

// GenerationHandler serves the synchronous and streaming generation routes.
type GenerationHandler struct {
	dispatcher  *dispatch.Dispatcher
	coordinator *dispatch.Coordinator
	logger      *zap.Logger
}

func NewGenerationHandler(d *dispatch.Dispatcher, c *dispatch.Coordinator, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{dispatcher: d, coordinator: c, logger: logger}
}

// generationResponse is the transport shape of a GenerationResult: images
// are rendered as URLs or data URLs.
type generationResponse struct {
	Success bool     `json:"success"`
	Images  []string `json:"images"`
	Error   string   `json:"error,omitempty"`
}

func toResponse(result types.GenerationResult) generationResponse {
	images := make([]string, 0, len(result.Images))
	for _, ref := range result.Images {
		images = append(images, ref.String())
	}
	return generationResponse{Success: result.Success, Images: images, Error: result.Error}
}

func decodeGenerationRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*types.GenerationRequest, bool) {
	var req types.GenerationRequest
	if err := DecodeJSONBody(w, r, &req, logger); err != nil {
		return nil, false
	}
	if req.Prompt == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "prompt is required", logger)
		return nil, false
	}
	if req.Type == "" {
		req.Type = types.TextToImage
	}
	return &req, true
}

// Generate handles POST /api/generate. The response is always a well-formed
// generation result; upstream failures arrive with success=false.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerationRequest(w, r, h.logger)
	if !ok {
		return
	}
	result := h.dispatcher.Generate(r.Context(), req)
	WriteJSON(w, http.StatusOK, toResponse(result))
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func writeSSE(w http.ResponseWriter, payload []byte) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// GenerateStream handles POST /api/generate-stream: the coordinated
// start/progress/image/terminal event sequence as server-sent events.
func (h *GenerationHandler) GenerateStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerationRequest(w, r, h.logger)
	if !ok {
		return
	}

	sseHeaders(w)
	for ev := range h.coordinator.Stream(r.Context(), req) {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		writeSSE(w, payload)
	}
}

// NativeStream handles POST /api/stream-generate: raw provider chunks are
// forwarded as-is, closed by a [DONE] sentinel. Only the primary variant
// supports this path.
func (h *GenerationHandler) NativeStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerationRequest(w, r, h.logger)
	if !ok {
		return
	}

	sseHeaders(w)
	chunks, err := h.dispatcher.NativeStream(r.Context(), req)
	if err != nil {
		payload, _ := json.Marshal(dispatch.Event{Type: dispatch.EventError, Message: err.Error()})
		writeSSE(w, payload)
		writeSSE(w, []byte("[DONE]"))
		return
	}

	for chunk := range chunks {
		writeSSE(w, chunk)
	}
	writeSSE(w, []byte("[DONE]"))
}
