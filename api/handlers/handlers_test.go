package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/dispatch"
	"github.com/BaSui01/imageflow/store"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires real stores over in-memory sqlite, a real dispatcher, and a
// fake upstream.
type testEnv struct {
	db          *gorm.DB
	configs     *store.ConfigStore
	history     store.HistoryStore
	dispatcher  *dispatch.Dispatcher
	coordinator *dispatch.Coordinator
	upstream    *httptest.Server
	activeID    string
}

func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	log := zap.NewNop()
	env := &testEnv{
		db:      db,
		configs: store.NewConfigStore(db, log),
		history: store.NewGormHistoryStore(db, log),
	}

	if upstream != nil {
		env.upstream = httptest.NewServer(upstream)
		t.Cleanup(env.upstream.Close)

		cfg := &store.ProviderConfig{
			Name:     "test-upstream",
			URL:      env.upstream.URL,
			APIKey:   "k",
			IsActive: true,
		}
		require.NoError(t, env.configs.Create(t.Context(), cfg))
		env.activeID = cfg.ID
	}

	env.dispatcher = dispatch.New(env.configs, env.history, log, dispatch.Options{
		UpstreamTimeout: 5 * time.Second,
	})
	env.coordinator = dispatch.NewCoordinator(env.dispatcher, log, nil, time.Millisecond)
	return env
}

func okUpstream(images ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[`))
		for i, img := range images {
			if i > 0 {
				w.Write([]byte(","))
			}
			w.Write([]byte(`{"url":"` + img + `"}`))
		}
		w.Write([]byte(`]}`))
	}
}
