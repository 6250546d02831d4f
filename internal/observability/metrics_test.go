package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)

	service, method = splitFullMethod("bogus")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}

func TestSetStreamStateIsExclusive(t *testing.T) {
	SetStreamState("errored")
	assert.Equal(t, 1.0, testutil.ToFloat64(streamState.WithLabelValues("errored")))
	assert.Equal(t, 0.0, testutil.ToFloat64(streamState.WithLabelValues("open")))

	SetStreamState("open")
	assert.Equal(t, 0.0, testutil.ToFloat64(streamState.WithLabelValues("errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(streamState.WithLabelValues("open")))
}

func TestSetFallbackArmed(t *testing.T) {
	SetFallbackArmed(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(fallbackArmed))
	SetFallbackArmed(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(fallbackArmed))
}

func TestHTTPMetricsMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/state", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/state", "204"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/state", "204"))
	assert.Equal(t, before+1, after)
}
