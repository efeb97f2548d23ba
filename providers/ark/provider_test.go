package ark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/imageflow/providers"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := New(providers.ArkConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())
	return p, srv
}

func capturePayload(t *testing.T, body *generationRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"url":"https://img/1.png"}]}`)
	}
}

func TestNewTrimsGenerationsPath(t *testing.T) {
	p := New(providers.ArkConfig{BaseURL: "https://ark.example.com/api/v3/images/generations"}, zap.NewNop())
	assert.Equal(t, "https://ark.example.com/api/v3/images/generations", p.endpoint())

	p = New(providers.ArkConfig{BaseURL: "https://ark.example.com/api/v3/"}, zap.NewNop())
	assert.Equal(t, "https://ark.example.com/api/v3/images/generations", p.endpoint())

	p = New(providers.ArkConfig{}, zap.NewNop())
	assert.Equal(t, defaultBaseURL+"/images/generations", p.endpoint())
}

func TestGenerateTextToImagePayload(t *testing.T) {
	var got generationRequest
	p, _ := newTestProvider(t, capturePayload(t, &got))

	seed := int64(42)
	steps := 30
	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "a red fox",
		Type:   types.TextToImage,
		Params: types.GenerationParams{
			Width: 1280, Height: 720, BatchSize: 2,
			Quality: "hd", Style: "vivid",
			NegativePrompt: "blurry",
			Seed:           &seed, Steps: steps, CFGScale: 7.5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, "1280x720", got.Size)
	assert.Equal(t, 2, got.N)
	assert.Equal(t, "hd", got.Quality)
	assert.Equal(t, "vivid", got.Style)
	assert.Equal(t, "blurry", got.NegativePrompt)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(42), *got.Seed)
	require.NotNil(t, got.Steps)
	assert.Equal(t, 30, *got.Steps)
	require.NotNil(t, got.CFGScale)
	assert.InDelta(t, 7.5, *got.CFGScale, 1e-9)
	require.NotNil(t, got.Watermark)
	assert.True(t, *got.Watermark)
	assert.False(t, got.Stream)
}

func TestGenerateInvalidSizeFallsBack(t *testing.T) {
	var got generationRequest
	p, _ := newTestProvider(t, capturePayload(t, &got))

	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "tiny",
		Type:   types.TextToImage,
		Params: types.GenerationParams{Width: 100, Height: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, "1024x1024", got.Size)
}

func TestGenerateBatchCapsCount(t *testing.T) {
	var got generationRequest
	p, _ := newTestProvider(t, capturePayload(t, &got))

	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "many foxes",
		Type:   types.BatchGeneration,
		Params: types.GenerationParams{BatchSize: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, batchCeiling, got.N)
}

func TestGenerateImageToImageStrengthPercentage(t *testing.T) {
	var got generationRequest
	p, _ := newTestProvider(t, capturePayload(t, &got))

	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt:      "restyle",
		Type:        types.ImageToImage,
		InputImages: []string{"aW1hZ2U="},
		Params:      types.GenerationParams{Strength: 0.65},
	})
	require.NoError(t, err)
	assert.Equal(t, "aW1hZ2U=", got.Image)
	require.NotNil(t, got.Strength)
	assert.Equal(t, 65, *got.Strength)
}

func TestGenerateFusionCarriesAllReferences(t *testing.T) {
	var got generationRequest
	p, _ := newTestProvider(t, capturePayload(t, &got))

	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt:      "merge",
		Type:        types.MultiImageFusion,
		InputImages: []string{"one", "two", "three"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got.Images)
}

func TestGenerateUpstreamErrorPropagates(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"throttled"}}`)
	})

	_, err := p.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "x", Type: types.TextToImage,
	})
	require.Error(t, err)
	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.ErrUpstreamError, terr.Code)
	assert.Equal(t, http.StatusTooManyRequests, terr.HTTPStatus)
	assert.Contains(t, terr.Message, "throttled")
}

func TestGenerateStream(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"url\":\"https://img/1.png\"}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"url\":\"https://img/2.png\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.GenerateStream(context.Background(), &types.GenerationRequest{
		Prompt: "stream it", Type: types.TextToImage,
	})
	require.NoError(t, err)

	var chunks []string
	for chunk := range ch {
		chunks = append(chunks, string(chunk))
	}
	// Undecodable chunk is dropped, [DONE] terminates
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "1.png")
	assert.Contains(t, chunks[1], "2.png")
}

func TestGenerateStreamUpstreamFailure(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "down")
	})

	_, err := p.GenerateStream(context.Background(), &types.GenerationRequest{
		Prompt: "x", Type: types.TextToImage,
	})
	require.Error(t, err)
	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Retryable)
}

func TestResolveUnknownTypeDegrades(t *testing.T) {
	p := New(providers.ArkConfig{}, zap.NewNop())
	assert.Equal(t, types.TextToImage, p.Resolve(types.GenerationType("bogus")))
	for _, gt := range types.GenerationTypes() {
		assert.Equal(t, gt, p.Resolve(gt))
	}
}
