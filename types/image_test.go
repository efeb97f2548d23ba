package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationTypeValid(t *testing.T) {
	for _, gt := range GenerationTypes() {
		assert.True(t, gt.Valid(), "type %s", gt)
	}
	assert.False(t, GenerationType("video_to_image").Valid())
	assert.False(t, GenerationType("").Valid())
}

func TestImageRefString(t *testing.T) {
	assert.Equal(t, "https://example.com/a.png", URLRef("https://example.com/a.png").String())
	assert.Equal(t, "data:image/png;base64,Zm9v", DataRef("Zm9v").String())

	// Missing media type falls back to the default
	r := ImageRef{Kind: ImageRefData, Data: "Zm9v"}
	assert.Equal(t, "data:image/png;base64,Zm9v", r.String())
}

func TestWatermarkDefault(t *testing.T) {
	var p GenerationParams
	assert.True(t, p.WatermarkEnabled())

	off := false
	p.Watermark = &off
	assert.False(t, p.WatermarkEnabled())
}

func TestFailedResult(t *testing.T) {
	r := FailedResult("boom")
	assert.False(t, r.Success)
	assert.NotNil(t, r.Images)
	assert.Empty(t, r.Images)
	assert.Equal(t, "boom", r.Error)
}
