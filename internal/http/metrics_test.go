package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	s, err := NewServer(Services{
		Predictor: &stubPredictor{},
		Foods:     testFoods(),
		Tracking:  tracking.NewStore(),
	}, logging.NewNop(), nil, WithMeterProvider(mp))
	require.NoError(t, err)

	for _, path := range []string{
		"/health",
		"/api/tracking/foods",
		"/api/tracking/get-daily/u1/2024-01-01",
		"/api/tracking/get-daily/u2/2024-01-02",
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			switch m.Name {
			case "nutrid.http.requests_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)

				byRoute := map[string]int64{}
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value("route")
					byRoute[route.AsString()] += dp.Value

					if route.AsString() == "/api/tracking/get-daily/:user_id/:date" {
						status, _ := dp.Attributes.Value(attribute.Key("status"))
						assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
					}
				}
				assert.Equal(t, int64(1), byRoute["/health"])
				assert.Equal(t, int64(1), byRoute["/api/tracking/foods"])
				assert.Equal(t, int64(2), byRoute["/api/tracking/get-daily/:user_id/:date"])
			case "nutrid.http.request_duration_seconds":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				var count uint64
				for _, dp := range hist.DataPoints {
					count += dp.Count
				}
				assert.Equal(t, uint64(4), count)
			}
		}
	}

	assert.True(t, found["nutrid.http.requests_total"], "requests counter not found")
	assert.True(t, found["nutrid.http.request_duration_seconds"], "duration histogram not found")
	assert.True(t, found["nutrid.http.response_size_bytes"], "response size histogram not found")
	assert.True(t, found["nutrid.http.active_requests"], "active requests gauge not found")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/health", "/health"},
		{"/api/tracking/get-daily/:user_id/:date", "/api/tracking/get-daily/:user_id/:date"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input))
	}
}
