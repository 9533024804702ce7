package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextDefaultsToNop(t *testing.T) {
	t.Parallel()

	require.NotNil(t, FromContext(context.Background()))
	logger := zap.NewExample()
	require.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
	require.Equal(t, context.Background(), WithLogger(context.Background(), nil))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	t.Parallel()

	logger, err := newLogger("not-a-level")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger("DEBUG")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(InjectLogger(zap.New(core)))
	r.Use(RequestLogger)
	r.Get("/feeds/{name}", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feeds/teh", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	inside := logs.FilterMessage("inside handler").All()
	require.Len(t, inside, 1)
	require.Equal(t, "/feeds/teh", inside[0].ContextMap()["path"], "handler logger carries request fields")

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 1)
	require.Equal(t, zapcore.ErrorLevel, done[0].Level)
	fields := done[0].ContextMap()
	require.Equal(t, "/feeds/{name}", fields["route"])
	require.EqualValues(t, http.StatusBadGateway, fields["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	done = logs.FilterMessage("request completed").All()
	require.Len(t, done, 2)
	require.Equal(t, zapcore.InfoLevel, done[1].Level)
	require.EqualValues(t, 4, done[1].ContextMap()["bytes"])
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "GETX", sanitize("GET\x00X\n", 10))
	require.Equal(t, "abc", sanitize("abcdef", 3))
}
