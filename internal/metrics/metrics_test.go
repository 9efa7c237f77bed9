package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEdit(t *testing.T) {
	applied := testutil.ToFloat64(EditsTotal.WithLabelValues("cut", "applied"))
	noop := testutil.ToFloat64(EditsTotal.WithLabelValues("cut", "noop"))

	RecordEdit("cut", nil)
	RecordEdit("cut", errors.New("no clip at time"))
	RecordEdit("cut", nil)

	assert.Equal(t, applied+2, testutil.ToFloat64(EditsTotal.WithLabelValues("cut", "applied")))
	assert.Equal(t, noop+1, testutil.ToFloat64(EditsTotal.WithLabelValues("cut", "noop")))
}

func TestThumbnailCounters(t *testing.T) {
	before := testutil.ToFloat64(ThumbnailBatchesTotal.WithLabelValues(OutcomeSuperseded))
	ThumbnailBatchesTotal.WithLabelValues(OutcomeSuperseded).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ThumbnailBatchesTotal.WithLabelValues(OutcomeSuperseded)))
}

func TestHandler(t *testing.T) {
	RecordEdit("merge", nil)
	h := Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `splice_edits_total{op="merge",outcome="applied"}`)
}
