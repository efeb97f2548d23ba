package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func historyMux(h *HistoryHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/history", h.Recent)
	mux.HandleFunc("DELETE /api/history/{id}", h.Delete)
	return mux
}

func TestHistoryRecentWithLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, env.history.Append(t.Context(), &types.HistoryEntry{
			Prompt:  fmt.Sprintf("prompt %d", i),
			Success: true,
		}))
	}
	mux := historyMux(NewHistoryHandler(env.history, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodGet, "/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []types.HistoryEntry
	decodeData(t, rec, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "prompt 4", entries[0].Prompt)
}

func TestHistoryDefaultLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 60; i++ {
		require.NoError(t, env.history.Append(t.Context(), &types.HistoryEntry{
			Prompt: fmt.Sprintf("p%d", i),
		}))
	}
	mux := historyMux(NewHistoryHandler(env.history, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []types.HistoryEntry
	decodeData(t, rec, &entries)
	assert.Len(t, entries, defaultHistoryLimit)
}

func TestHistoryDeleteMissingEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	mux := historyMux(NewHistoryHandler(env.history, zap.NewNop()))

	rec := doJSON(t, mux, http.MethodDelete, "/api/history/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
