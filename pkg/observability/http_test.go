package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/exfang/pkg/observability"
)

func serve(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return rec
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := serve(observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("store not loaded") }

	rec := serve(observability.ReadyHandler(pass), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(observability.ReadyHandler(pass, fail), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","reason":"store not loaded"}`, rec.Body.String())
}

func TestDiagnosticsServer(t *testing.T) {
	t.Parallel()

	metrics, err := observability.PrometheusScrapeHandler()
	require.NoError(t, err)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", metrics, nil)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req, reqErr := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+srv.Addr()+path, http.NoBody)
		require.NoError(t, reqErr)

		resp, getErr := http.DefaultClient.Do(req)
		require.NoError(t, getErr, path)

		_, _ = io.Copy(io.Discard, resp.Body)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestHTTPMiddleware_RecordsServerSpan(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	failing := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	})

	serve(observability.HTTPMiddleware(tp.Tracer("test"), failing), "/readyz")
	serve(observability.HTTPMiddleware(tp.Tracer("test"), observability.HealthHandler()), "/healthz")

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /readyz", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.Equal(t, "GET /healthz", spans[1].Name())
	assert.Equal(t, "Unset", spans[1].Status().Code.String())
}

func TestAttributeFilter(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(observability.NewAttributeFilter(recorder, nil)))

	_, span := tp.Tracer("test").Start(context.Background(), "exfang.check.unit")
	span.SetAttributes(
		attribute.String("exfang.rewrites", "1"),
		attribute.String("unit.name", "Calc.java"),
		attribute.String("exfang.source", "int c = a.add(b);"),
		attribute.String("user.email", "x@example.com"),
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	var keys []string
	for _, kv := range spans[0].Attributes() {
		keys = append(keys, string(kv.Key))
	}

	assert.ElementsMatch(t, []string{"exfang.rewrites", "unit.name"}, keys)
}

func TestFilteringTracerProvider(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := observability.NewFilteringTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	tracer := tp.Tracer("exfang.check")

	_, hot := tracer.Start(context.Background(), "exfang.check.template")
	assert.False(t, hot.IsRecording())
	hot.End()

	_, unit := tracer.Start(context.Background(), "exfang.check.unit")
	assert.True(t, unit.IsRecording())
	unit.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "exfang.check.unit", recorder.Ended()[0].Name())
}
