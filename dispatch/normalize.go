package dispatch

import (
	"encoding/json"

	"github.com/BaSui01/imageflow/types"
)

// imageEntry is the per-image shape shared by the enveloped responses:
// either a fetchable URL or an inline base64 payload.
type imageEntry struct {
	URL     string `json:"url"`
	B64JSON string `json:"b64_json"`
}

// Normalize maps a raw provider response onto an ordered list of canonical
// image references. Recognized shapes, in priority order:
//
//  1. a bare array of URL strings
//  2. {"data": [{"url": ...} | {"b64_json": ...}, ...]}
//  3. {"output": {"results": [same entry shape]}}
//
// Anything else yields an empty list. Order is preserved, and the input is
// never mutated, so normalizing the same raw bytes twice gives identical
// results.
func Normalize(raw json.RawMessage) []types.ImageRef {
	if len(raw) == 0 {
		return []types.ImageRef{}
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		refs := make([]types.ImageRef, 0, len(urls))
		for _, u := range urls {
			refs = append(refs, types.URLRef(u))
		}
		return refs
	}

	var envelope struct {
		Data   []imageEntry `json:"data"`
		Output *struct {
			Results []imageEntry `json:"results"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return []types.ImageRef{}
	}

	if len(envelope.Data) > 0 {
		return entriesToRefs(envelope.Data)
	}
	if envelope.Output != nil {
		return entriesToRefs(envelope.Output.Results)
	}
	return []types.ImageRef{}
}

func entriesToRefs(entries []imageEntry) []types.ImageRef {
	refs := make([]types.ImageRef, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.URL != "":
			refs = append(refs, types.URLRef(e.URL))
		case e.B64JSON != "":
			refs = append(refs, types.DataRef(e.B64JSON))
		}
	}
	return refs
}
