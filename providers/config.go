package providers

import (
	"net/http"
	"time"
)

// ArkConfig configures the Volcengine Ark (Doubao) adapter.
type ArkConfig struct {
	APIKey  string            `json:"api_key" yaml:"api_key"`
	BaseURL string            `json:"base_url" yaml:"base_url"`
	Model   string            `json:"model,omitempty" yaml:"model,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// WanxConfig configures the DashScope ImageSynthesis (wanx) adapter.
type WanxConfig struct {
	APIKey  string            `json:"api_key" yaml:"api_key"`
	BaseURL string            `json:"base_url" yaml:"base_url"`
	Model   string            `json:"model,omitempty" yaml:"model,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultUpstreamTimeout bounds every upstream generation call.
const DefaultUpstreamTimeout = 120 * time.Second

// ApplyHeaders sets the bearer credential, content type, and any extra
// stored headers on an upstream request.
func ApplyHeaders(req *http.Request, apiKey string, extra map[string]string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}
