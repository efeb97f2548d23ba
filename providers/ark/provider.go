// Package ark implements the Volcengine Ark (Doubao SeedDream) image
// generation adapter. Ark exposes an OpenAI-style images/generations
// endpoint and is the only variant with native upstream streaming.
// API docs: https://www.volcengine.com/docs/82379/1824121
package ark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/imageflow/providers"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultModel   = "doubao-seedream-4-0-250828"

	// batchCeiling caps the requested image count on batch operations
	// regardless of what the caller asked for.
	batchCeiling = 10
)

// Provider is the Variant A adapter. It supports the full capability set.
type Provider struct {
	cfg    providers.ArkConfig
	client *http.Client
	logger *zap.Logger
}

// New creates an Ark provider. A base URL that already carries the
// /images/generations path is trimmed back to its root so the endpoint is
// not duplicated.
func New(cfg providers.ArkConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if i := strings.Index(cfg.BaseURL, "/images/generations"); i >= 0 {
		cfg.BaseURL = cfg.BaseURL[:i]
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = providers.DefaultUpstreamTimeout
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (p *Provider) Name() string { return "ark" }

func (p *Provider) Kind() providers.Kind { return providers.KindArk }

// Resolve is the identity for every enumerated type: Ark implements the
// full capability set. Unknown tags degrade to text_to_image.
func (p *Provider) Resolve(t types.GenerationType) types.GenerationType {
	if t.Valid() {
		return t
	}
	return types.TextToImage
}

func (p *Provider) SupportedSizes() []string { return providers.ArkSizes() }

func (p *Provider) SupportedModels() []string {
	return []string{
		"doubao-seedream-4-0-250828",
		"doubao-pro-32k-240515",
		"doubao-lite-4k-240515",
	}
}

// generationRequest is the Ark wire format. Optional parameters are pointer
// fields so absence is explicit rather than a conditional key insertion.
type generationRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	Size           string   `json:"size,omitempty"`
	N              int      `json:"n,omitempty"`
	Quality        string   `json:"quality,omitempty"`
	Style          string   `json:"style,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Steps          *int     `json:"steps,omitempty"`
	CFGScale       *float64 `json:"cfg_scale,omitempty"`
	Strength       *int     `json:"strength,omitempty"`
	Image          string   `json:"image,omitempty"`
	Images         []string `json:"images,omitempty"`
	Watermark      *bool    `json:"watermark,omitempty"`
	Stream         bool     `json:"stream,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate issues a synchronous images/generations call for the resolved
// generation type and returns the raw response body.
func (p *Provider) Generate(ctx context.Context, req *types.GenerationRequest) (json.RawMessage, error) {
	body, err := p.buildPayload(ctx, p.Resolve(req.Type), req)
	if err != nil {
		return nil, err
	}
	return p.post(ctx, body)
}

// GenerateStream issues the call with stream=true and forwards each decoded
// SSE chunk. Chunks that fail to parse are dropped without terminating the
// stream; "[DONE]" ends it.
func (p *Provider) GenerateStream(ctx context.Context, req *types.GenerationRequest) (<-chan json.RawMessage, error) {
	body, err := p.buildPayload(ctx, p.Resolve(req.Type), req)
	if err != nil {
		return nil, err
	}
	body.Stream = true

	payload, _ := json.Marshal(body)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	providers.ApplyHeaders(httpReq, p.cfg.APIKey, p.cfg.Headers)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.upstreamError(resp)
	}

	ch := make(chan json.RawMessage)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					p.logger.Warn("ark stream read error", zap.Error(err))
				}
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			if !json.Valid([]byte(data)) {
				p.logger.Debug("dropping undecodable ark chunk", zap.Int("len", len(data)))
				continue
			}
			select {
			case ch <- json.RawMessage(data):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// buildPayload maps the canonical request onto the Ark wire format for one
// operation. Field presence per operation mirrors the upstream contract:
// single-output ops honor the full parameter bundle, batch ops cap n at the
// fixed ceiling, fusion ops carry the reference image list.
func (p *Provider) buildPayload(ctx context.Context, op types.GenerationType, req *types.GenerationRequest) (*generationRequest, error) {
	params := req.Params
	body := &generationRequest{
		Model:          providers.ChooseModel(req, p.cfg.Model, defaultModel),
		Prompt:         req.Prompt,
		Size:           providers.NormalizeSize(sizeOrDefault(params.Width), sizeOrDefault(params.Height), "x"),
		ResponseFormat: "url",
		NegativePrompt: params.NegativePrompt,
		Seed:           params.Seed,
	}

	n := params.BatchSize
	if n <= 0 {
		n = 1
	}

	switch op {
	case types.TextToImage:
		body.N = n
		body.Quality = qualityOrDefault(params.Quality)
		body.Style = params.Style
		body.Watermark = watermarkPtr(params)
		if params.Steps > 0 {
			body.Steps = &params.Steps
		}
		if params.CFGScale > 0 {
			body.CFGScale = &params.CFGScale
		}

	case types.ImageToImage:
		body.N = n
		body.Watermark = watermarkPtr(params)
		if err := p.attachSingleImage(ctx, body, req); err != nil {
			return nil, err
		}
		if params.Strength > 0 {
			pct := int(params.Strength * 100)
			body.Strength = &pct
		}

	case types.MultiImageFusion:
		body.Images = referenceImages(req)
		body.Watermark = watermarkPtr(params)

	case types.BatchGeneration, types.TextToBatch:
		body.N = batchCount(n)
		body.Quality = qualityOrDefault(params.Quality)

	case types.ImageToBatch:
		body.N = batchCount(n)
		body.Watermark = watermarkPtr(params)
		if err := p.attachSingleImage(ctx, body, req); err != nil {
			return nil, err
		}
		if params.Strength > 0 {
			pct := int(params.Strength * 100)
			body.Strength = &pct
		}

	case types.MultiReferenceBatch:
		body.N = batchCount(n)
		body.Images = referenceImages(req)
		body.Watermark = watermarkPtr(params)
	}

	return body, nil
}

// attachSingleImage wires the first reference image into the payload,
// downloading URL inputs and embedding them as base64.
func (p *Provider) attachSingleImage(ctx context.Context, body *generationRequest, req *types.GenerationRequest) error {
	if len(req.InputImages) > 0 {
		body.Image = req.InputImages[0]
		return nil
	}
	if len(req.InputImageURLs) > 0 {
		b64, err := p.fetchAsBase64(ctx, req.InputImageURLs[0])
		if err != nil {
			return err
		}
		body.Image = b64
	}
	return nil
}

func (p *Provider) post(ctx context.Context, body *generationRequest) (json.RawMessage, error) {
	payload, _ := json.Marshal(body)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	providers.ApplyHeaders(httpReq, p.cfg.APIKey, p.cfg.Headers)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp.StatusCode, raw)
	}
	return json.RawMessage(raw), nil
}

func (p *Provider) endpoint() string {
	return p.cfg.BaseURL + "/images/generations"
}

// fetchAsBase64 downloads an image URL and returns its base64 encoding.
func (p *Provider) fetchAsBase64(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", types.NewError(types.ErrValidation, fmt.Sprintf("bad image url %q", url)).WithCause(err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "image download failed").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("image download failed: status %d for %s", resp.StatusCode, url)).
			WithHTTPStatus(resp.StatusCode).WithProvider(p.Name())
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "image download failed").
			WithCause(err).WithProvider(p.Name())
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (p *Provider) upstreamError(resp *http.Response) *types.Error {
	raw, _ := io.ReadAll(resp.Body)
	return p.statusError(resp.StatusCode, raw)
}

// statusError converts a non-success upstream status into a typed error
// carrying the status code and response body. The adapter never swallows
// these; the dispatcher decides how they surface.
func (p *Provider) statusError(status int, body []byte) *types.Error {
	msg := string(body)
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	return types.NewError(types.ErrUpstreamError, fmt.Sprintf("ark call failed: status=%d msg=%s", status, msg)).
		WithHTTPStatus(status).
		WithRetryable(status >= 500).
		WithProvider(p.Name())
}

func sizeOrDefault(dim int) int {
	if dim <= 0 {
		return 1024
	}
	return dim
}

func qualityOrDefault(q string) string {
	if q == "" {
		return "standard"
	}
	return q
}

func batchCount(n int) int {
	if n <= 0 {
		n = 4
	}
	if n > batchCeiling {
		return batchCeiling
	}
	return n
}

func watermarkPtr(p types.GenerationParams) *bool {
	v := p.WatermarkEnabled()
	return &v
}

func referenceImages(req *types.GenerationRequest) []string {
	if len(req.InputImages) > 0 {
		return req.InputImages
	}
	return req.InputImageURLs
}

var _ providers.StreamingProvider = (*Provider)(nil)
