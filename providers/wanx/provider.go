// Package wanx implements the DashScope ImageSynthesis (Tongyi Wanxiang)
// image generation adapter. It is the secondary variant: synchronous only,
// a single reference image at most, and a capability set limited to
// text_to_image plus an image-edit flavored image_to_image.
package wanx

import (
	"bytes"
	"context"
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
	defaultBaseURL = "https://dashscope.aliyuncs.com"
	synthesisPath  = "/api/v1/services/aigc/text2image/image-synthesis"

	defaultModel = "wanx-v1"
	// editModel is substituted for image-conditioned generation.
	editModel = "wanx2.1-imageedit"
)

// Provider is the Variant B adapter.
type Provider struct {
	cfg    providers.WanxConfig
	client *http.Client
	logger *zap.Logger
}

// New creates a wanx provider.
func New(cfg providers.WanxConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
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

func (p *Provider) Name() string { return "wanx" }

func (p *Provider) Kind() providers.Kind { return providers.KindWanx }

// Resolve degrades every batch and fusion type to text_to_image. This is a
// deliberate availability-over-fidelity tradeoff: the request still
// succeeds, batch and fusion semantics are discarded.
func (p *Provider) Resolve(t types.GenerationType) types.GenerationType {
	switch t {
	case types.TextToImage, types.ImageToImage:
		return t
	default:
		return types.TextToImage
	}
}

func (p *Provider) SupportedSizes() []string { return providers.WanxSizes() }

func (p *Provider) SupportedModels() []string {
	return []string{"wanx-v1", "wanx2.1-imageedit", "qwen-image"}
}

// Wire format. DashScope nests the prompt under input and tuning knobs
// under parameters.
type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	RefImageURL    string `json:"ref_image_url,omitempty"`
}

type synthesisParams struct {
	N     int    `json:"n,omitempty"`
	Size  string `json:"size,omitempty"`
	Style string `json:"style,omitempty"`
	Seed  *int64 `json:"seed,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Generate issues a synchronous image-synthesis call and returns the raw
// response body. image_to_image without any reference image falls back to
// plain text_to_image.
func (p *Provider) Generate(ctx context.Context, req *types.GenerationRequest) (json.RawMessage, error) {
	op := p.Resolve(req.Type)

	body := synthesisRequest{
		Model: providers.ChooseModel(req, p.cfg.Model, defaultModel),
		Input: synthesisInput{
			Prompt:         req.Prompt,
			NegativePrompt: req.Params.NegativePrompt,
		},
		Parameters: synthesisParams{
			N:     batchSize(req.Params.BatchSize),
			Size:  providers.NormalizeSize(req.Params.Width, req.Params.Height, "*"),
			Style: req.Params.Style,
			Seed:  req.Params.Seed,
		},
	}

	if op == types.ImageToImage {
		ref := referenceImage(req)
		if ref == "" {
			// No usable reference: degrade to text_to_image.
			op = types.TextToImage
		} else {
			body.Input.RefImageURL = ref
			body.Model = editModel
		}
	}

	payload, _ := json.Marshal(body)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+synthesisPath, bytes.NewReader(payload))
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
		msg := string(raw)
		var er errorResponse
		if err := json.Unmarshal(raw, &er); err == nil && er.Message != "" {
			msg = er.Message
		}
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("wanx call failed: status=%d msg=%s", resp.StatusCode, msg)).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500).
			WithProvider(p.Name())
	}
	return json.RawMessage(raw), nil
}

// referenceImage picks the single supported reference: a URL passes
// through, an inline base64 payload is wrapped as a data URL.
func referenceImage(req *types.GenerationRequest) string {
	if len(req.InputImages) > 0 {
		return "data:" + types.DefaultMediaType + ";base64," + req.InputImages[0]
	}
	if len(req.InputImageURLs) > 0 {
		return req.InputImageURLs[0]
	}
	return ""
}

func batchSize(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

var _ providers.ImageProvider = (*Provider)(nil)
