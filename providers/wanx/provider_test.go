package wanx

import (
	"context"
	"encoding/json"
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
	p := New(providers.WanxConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())
	return p, srv
}

func capturePayload(t *testing.T, req *types.GenerationRequest) synthesisRequest {
	t.Helper()
	var captured synthesisRequest
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"output":{"results":[{"url":"https://img/1.png"}]}}`))
	})
	_, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	return captured
}

func TestResolveDegradesToTextToImage(t *testing.T) {
	p := New(providers.WanxConfig{}, zap.NewNop())
	for _, typ := range types.GenerationTypes() {
		got := p.Resolve(typ)
		switch typ {
		case types.TextToImage, types.ImageToImage:
			assert.Equal(t, typ, got)
		default:
			assert.Equal(t, types.TextToImage, got, "type %s", typ)
		}
	}
}

func TestGenerateTextToImagePayload(t *testing.T) {
	seed := int64(42)
	body := capturePayload(t, &types.GenerationRequest{
		Prompt: "a lighthouse at dusk",
		Type:   types.TextToImage,
		Params: types.GenerationParams{
			Width:          1280,
			Height:         720,
			BatchSize:      2,
			Style:          "watercolor",
			Seed:           &seed,
			NegativePrompt: "blurry",
		},
	})

	assert.Equal(t, "wanx-v1", body.Model)
	assert.Equal(t, "a lighthouse at dusk", body.Input.Prompt)
	assert.Equal(t, "blurry", body.Input.NegativePrompt)
	assert.Empty(t, body.Input.RefImageURL)
	assert.Equal(t, 2, body.Parameters.N)
	assert.Equal(t, "1280*720", body.Parameters.Size)
	assert.Equal(t, "watercolor", body.Parameters.Style)
	require.NotNil(t, body.Parameters.Seed)
	assert.Equal(t, seed, *body.Parameters.Seed)
}

func TestGenerateUsesStarSeparatorDefault(t *testing.T) {
	body := capturePayload(t, &types.GenerationRequest{
		Prompt: "p",
		Type:   types.TextToImage,
		Params: types.GenerationParams{Width: 100, Height: 100},
	})
	assert.Equal(t, "1024*1024", body.Parameters.Size)
}

func TestGenerateImageEditSwitchesModel(t *testing.T) {
	body := capturePayload(t, &types.GenerationRequest{
		Prompt:         "add a hat",
		Type:           types.ImageToImage,
		InputImageURLs: []string{"https://example.com/in.png"},
	})
	assert.Equal(t, "wanx2.1-imageedit", body.Model)
	assert.Equal(t, "https://example.com/in.png", body.Input.RefImageURL)
}

func TestGenerateImageEditInlineBase64BecomesDataURL(t *testing.T) {
	body := capturePayload(t, &types.GenerationRequest{
		Prompt:      "restyle",
		Type:        types.ImageToImage,
		InputImages: []string{"Zm9v"},
	})
	assert.Equal(t, "data:image/png;base64,Zm9v", body.Input.RefImageURL)
}

func TestGenerateImageEditWithoutReferenceFallsBack(t *testing.T) {
	body := capturePayload(t, &types.GenerationRequest{
		Prompt: "no reference given",
		Type:   types.ImageToImage,
	})
	assert.Equal(t, "wanx-v1", body.Model)
	assert.Empty(t, body.Input.RefImageURL)
}

func TestGenerateBatchTypeDegrades(t *testing.T) {
	body := capturePayload(t, &types.GenerationRequest{
		Prompt: "four variants",
		Type:   types.TextToBatch,
		Params: types.GenerationParams{BatchSize: 4},
	})
	assert.Equal(t, "wanx-v1", body.Model)
	assert.Empty(t, body.Input.RefImageURL)
	assert.Equal(t, 4, body.Parameters.N)
}

func TestGenerateUpstreamError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":"Throttling","message":"rate limit exceeded"}`))
	})

	_, err := p.Generate(context.Background(), &types.GenerationRequest{Prompt: "p", Type: types.TextToImage})
	require.Error(t, err)

	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.ErrUpstreamError, terr.Code)
	assert.Equal(t, http.StatusTooManyRequests, terr.HTTPStatus)
	assert.False(t, terr.Retryable)
	assert.Contains(t, terr.Message, "rate limit exceeded")
	assert.Equal(t, "wanx", terr.Provider)
}

func TestGenerateSendsAuthHeader(t *testing.T) {
	var auth string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"output":{"results":[]}}`))
	})
	_, err := p.Generate(context.Background(), &types.GenerationRequest{Prompt: "p", Type: types.TextToImage})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", auth)
}
