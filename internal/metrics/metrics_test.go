package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ChargeInitiated("tip")
	r.ChargeInitiated("tip")
	r.ChargeFinalized("succeeded", true)
	r.ChargeFinalized("succeeded", false)
	r.ChargeSettled("tip", 2500)
	r.ViewRecorded("fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.chargesInitiated.WithLabelValues("tip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chargesFinalized.WithLabelValues("succeeded", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chargesFinalized.WithLabelValues("succeeded", "false")))
	assert.Equal(t, 2500.0, testutil.ToFloat64(r.grossCents.WithLabelValues("tip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.views.WithLabelValues("fallback")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ChargeInitiated("tip")
		r.ChargeFinalized("failed", false)
		r.ViewRecorded("recorded")
		r.FollowChanged("follow")
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	r := New()
	r.FollowChanged("follow")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "racer_platform_engagement_follow_changes_total")
}
