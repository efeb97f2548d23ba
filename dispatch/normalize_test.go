package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeBareURLArray(t *testing.T) {
	refs := Normalize(json.RawMessage(`["https://img/1.png","https://img/2.png"]`))
	require.Len(t, refs, 2)
	assert.Equal(t, types.URLRef("https://img/1.png"), refs[0])
	assert.Equal(t, types.URLRef("https://img/2.png"), refs[1])
}

func TestNormalizeDataEnvelope(t *testing.T) {
	refs := Normalize(json.RawMessage(`{"data":[{"url":"u1"},{"b64_json":"Zm9v"}]}`))
	require.Len(t, refs, 2)
	assert.Equal(t, types.URLRef("u1"), refs[0])
	assert.Equal(t, types.DataRef("Zm9v"), refs[1])
	assert.Equal(t, types.DefaultMediaType, refs[1].MediaType)
}

func TestNormalizeOutputResults(t *testing.T) {
	raw := json.RawMessage(`{"output":{"results":[{"url":"https://a"},{"url":"https://b"},{"url":"https://c"}]}}`)
	refs := Normalize(raw)
	require.Len(t, refs, 3)
	assert.Equal(t, "https://a", refs[0].URL)
	assert.Equal(t, "https://c", refs[2].URL)
}

func TestNormalizeDataTakesPriorityOverOutput(t *testing.T) {
	raw := json.RawMessage(`{"data":[{"url":"from-data"}],"output":{"results":[{"url":"from-output"}]}}`)
	refs := Normalize(raw)
	require.Len(t, refs, 1)
	assert.Equal(t, "from-data", refs[0].URL)
}

func TestNormalizeUnrecognizedShapes(t *testing.T) {
	for _, raw := range []string{
		``,
		`null`,
		`42`,
		`"just a string"`,
		`{"unexpected":true}`,
		`{"data":"not an array"}`,
		`not even json`,
	} {
		assert.Empty(t, Normalize(json.RawMessage(raw)), "raw=%q", raw)
	}
}

func TestNormalizeEntriesWithoutPayloadAreSkipped(t *testing.T) {
	refs := Normalize(json.RawMessage(`{"data":[{"url":"u1"},{},{"b64_json":"YQ=="}]}`))
	require.Len(t, refs, 2)
	assert.Equal(t, "u1", refs[0].URL)
	assert.Equal(t, "YQ==", refs[1].Data)
}

func TestNormalizeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		urls := rapid.SliceOfN(rapid.StringMatching(`https://img/[a-z0-9]{1,12}\.png`), 0, 8).Draw(t, "urls")

		shapes := make([]json.RawMessage, 0, 3)
		if bare, err := json.Marshal(urls); err == nil {
			shapes = append(shapes, bare)
		}
		entries := make([]map[string]string, 0, len(urls))
		for _, u := range urls {
			entries = append(entries, map[string]string{"url": u})
		}
		if data, err := json.Marshal(map[string]any{"data": entries}); err == nil {
			shapes = append(shapes, data)
		}
		if out, err := json.Marshal(map[string]any{"output": map[string]any{"results": entries}}); err == nil {
			shapes = append(shapes, out)
		}

		for _, raw := range shapes {
			first := Normalize(raw)
			second := Normalize(raw)
			if len(first) != len(urls) {
				t.Fatalf("expected %d refs, got %d", len(urls), len(first))
			}
			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("normalize not idempotent at %d: %v vs %v", i, first[i], second[i])
				}
				if first[i].URL != urls[i] {
					t.Fatalf("order not preserved at %d", i)
				}
			}
		}
	})
}
