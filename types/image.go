package types

import (
	"encoding/json"
	"time"
)

// GenerationType selects which adapter operation a request invokes.
type GenerationType string

const (
	TextToImage         GenerationType = "text_to_image"
	ImageToImage        GenerationType = "image_to_image"
	MultiImageFusion    GenerationType = "multi_image_fusion"
	BatchGeneration     GenerationType = "batch_generation"
	TextToBatch         GenerationType = "text_to_batch"
	ImageToBatch        GenerationType = "image_to_batch"
	MultiReferenceBatch GenerationType = "multi_reference_batch"
)

// GenerationTypes lists every supported generation type in a stable order.
func GenerationTypes() []GenerationType {
	return []GenerationType{
		TextToImage,
		ImageToImage,
		MultiImageFusion,
		BatchGeneration,
		TextToBatch,
		ImageToBatch,
		MultiReferenceBatch,
	}
}

// Valid reports whether t is one of the enumerated generation types.
func (t GenerationType) Valid() bool {
	switch t {
	case TextToImage, ImageToImage, MultiImageFusion, BatchGeneration,
		TextToBatch, ImageToBatch, MultiReferenceBatch:
		return true
	}
	return false
}

// GenerationParams is the parameter bundle attached to a generation request.
// Every field is optional; zero values mean "let the provider decide", except
// Width/Height which default to 1024 and Watermark which defaults to true.
type GenerationParams struct {
	Model          string  `json:"model,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	Steps          int     `json:"steps,omitempty"`
	CFGScale       float64 `json:"cfg_scale,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
	Sampler        string  `json:"sampler,omitempty"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	BatchSize      int     `json:"batch_size,omitempty"`
	Style          string  `json:"style,omitempty"`
	Quality        string  `json:"quality,omitempty"`
	Strength       float64 `json:"strength,omitempty"`
	Watermark      *bool   `json:"watermark,omitempty"`
}

// WatermarkEnabled resolves the watermark flag, defaulting to true.
func (p GenerationParams) WatermarkEnabled() bool {
	if p.Watermark == nil {
		return true
	}
	return *p.Watermark
}

// GenerationRequest is the canonical request the dispatcher operates on,
// independent of any provider wire format.
type GenerationRequest struct {
	Prompt string           `json:"prompt"`
	Type   GenerationType   `json:"generation_type"`
	Params GenerationParams `json:"parameters"`

	// InputImages holds inline base64-encoded reference images.
	InputImages []string `json:"input_images,omitempty"`
	// InputImageURLs holds fetchable reference image URLs.
	InputImageURLs []string `json:"input_image_urls,omitempty"`

	// ConfigID references the stored ProviderConfig servicing this request.
	ConfigID string `json:"api_config_id"`
}

// ImageRefKind discriminates the two canonical image reference forms.
type ImageRefKind string

const (
	// ImageRefURL is a fetchable URL reference.
	ImageRefURL ImageRefKind = "url"
	// ImageRefData is a self-contained embedded reference (base64 payload).
	ImageRefData ImageRefKind = "data"
)

// DefaultMediaType is assumed for embedded payloads that do not declare one.
const DefaultMediaType = "image/png"

// ImageRef is the normalized representation of one generated image.
// Order within a result is significant and preserved end to end.
type ImageRef struct {
	Kind ImageRefKind `json:"kind"`

	// URL is set when Kind == ImageRefURL.
	URL string `json:"url,omitempty"`

	// Data holds the base64 payload when Kind == ImageRefData.
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// URLRef builds a URL-kind reference.
func URLRef(url string) ImageRef {
	return ImageRef{Kind: ImageRefURL, URL: url}
}

// DataRef builds an embedded reference with the default media type.
func DataRef(b64 string) ImageRef {
	return ImageRef{Kind: ImageRefData, Data: b64, MediaType: DefaultMediaType}
}

// String renders the reference in transport form: the URL itself, or a
// data URL for embedded payloads.
func (r ImageRef) String() string {
	if r.Kind == ImageRefURL {
		return r.URL
	}
	mt := r.MediaType
	if mt == "" {
		mt = DefaultMediaType
	}
	return "data:" + mt + ";base64," + r.Data
}

// GenerationResult is produced exactly once per request and is immutable
// after creation. A failed attempt carries the error message; Images may be
// empty on success when the provider returned nothing usable.
type GenerationResult struct {
	Success bool       `json:"success"`
	Images  []ImageRef `json:"images"`
	Error   string     `json:"error,omitempty"`
}

// FailedResult builds the failure-shaped result for a completed attempt.
func FailedResult(msg string) GenerationResult {
	return GenerationResult{Success: false, Images: []ImageRef{}, Error: msg}
}

// HistoryEntry records one completed generation attempt. Failed attempts
// are recorded too, with Success false and an empty image list.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Prompt    string          `json:"prompt"`
	Success   bool            `json:"success"`
	Images    []string        `json:"images"`
	Params    json.RawMessage `json:"parameters"`
	Timestamp time.Time       `json:"timestamp"`
}
