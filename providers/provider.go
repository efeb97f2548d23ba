package providers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BaSui01/imageflow/types"
)

// ImageProvider is the capability interface every adapter variant satisfies.
// Generate performs one synchronous generation of the requested type and
// returns the provider's raw response body for the normalizer. An adapter
// that does not implement the requested type must substitute the nearest
// supported operation rather than fail; Resolve reports that substitution.
type ImageProvider interface {
	// Name returns the provider name used in logs and metrics.
	Name() string

	// Kind returns the variant this adapter implements.
	Kind() Kind

	// Resolve maps a requested generation type onto the operation this
	// variant will actually perform. The result equals the input when the
	// type is natively supported.
	Resolve(t types.GenerationType) types.GenerationType

	// Generate issues the upstream call for the (already resolved)
	// generation type and returns the raw response body.
	Generate(ctx context.Context, req *types.GenerationRequest) (json.RawMessage, error)

	// SupportedSizes returns the size allow-list in this provider's own
	// separator convention.
	SupportedSizes() []string

	// SupportedModels returns the model allow-list.
	SupportedModels() []string
}

// StreamingProvider is implemented by variants with native upstream
// streaming. Chunks are raw decoded JSON objects forwarded as soon as
// parsed; undecodable chunks are dropped by the producer.
type StreamingProvider interface {
	ImageProvider

	// GenerateStream issues the upstream call with stream=true and returns
	// a channel of raw chunks. The channel is closed when the upstream
	// stream ends or ctx is cancelled.
	GenerateStream(ctx context.Context, req *types.GenerationRequest) (<-chan json.RawMessage, error)
}

// Kind identifies an adapter variant. Classification is closed: adding a
// third provider means adding a kind, a classification rule, and an adapter.
type Kind string

const (
	// KindArk is the Volcengine Ark (Doubao SeedDream) variant with the
	// full capability set and native streaming.
	KindArk Kind = "ark"
	// KindWanx is the DashScope ImageSynthesis (wanx) variant, limited to
	// text_to_image and a degraded image_to_image.
	KindWanx Kind = "wanx"
)

// wanxHostFragments are the endpoint URL substrings that select KindWanx.
var wanxHostFragments = []string{"dashscope", "aliyuncs"}

// ClassifyEndpoint resolves the adapter kind from a configured endpoint URL.
// Unrecognized endpoints default to KindArk.
func ClassifyEndpoint(url string) Kind {
	lower := strings.ToLower(url)
	for _, frag := range wanxHostFragments {
		if strings.Contains(lower, frag) {
			return KindWanx
		}
	}
	return KindArk
}

// ChooseModel selects the model to use based on priority: the request
// parameter, then the stored config, then the variant default.
func ChooseModel(req *types.GenerationRequest, configModel, defaultModel string) string {
	if req != nil && req.Params.Model != "" {
		return req.Params.Model
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}
