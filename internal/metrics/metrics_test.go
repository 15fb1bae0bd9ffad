package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joe/savegames/internal/metrics"
)

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	m := metrics.New()
	m.ObserveScan(20*time.Millisecond, nil)
	m.ObserveScan(time.Millisecond, errors.New("boom"))
	m.ObserveFile("move", nil)
	m.SetCatalogSize(7)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := recorder.Body.String()
	g.Expect(recorder.Code).To(Equal(http.StatusOK))
	g.Expect(body).To(ContainSubstring(`savegames_scans_total{status="ok"} 1`))
	g.Expect(body).To(ContainSubstring(`savegames_scans_total{status="error"} 1`))
	g.Expect(body).To(ContainSubstring(`savegames_transfers_total{operation="move",status="ok"} 1`))
	g.Expect(body).To(ContainSubstring("savegames_catalog_size 7"))
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	m := metrics.New()
	m.ObserveReadFailure()
	m.ObserveReadRetry()
	m.ObserveReadRetry()
	m.ObserveSkippedPublish()
	m.ObserveWatchError()

	expected := `
# HELP savegames_read_retries_total Header reads retried after a transient failure
# TYPE savegames_read_retries_total counter
savegames_read_retries_total 2
`
	g.Expect(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"savegames_read_retries_total")).To(Succeed())

	count, err := testutil.GatherAndCount(m.Registry(), "savegames_watch_errors_total")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(count).To(Equal(1))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var m *metrics.Metrics

	g.Expect(func() {
		m.ObserveScan(time.Second, nil)
		m.ObserveFile("copy", errors.New("x"))
		m.ObserveReadFailure()
		m.ObserveReadRetry()
		m.ObserveSkippedPublish()
		m.ObserveWatchError()
		m.SetCatalogSize(3)
	}).ToNot(Panic())

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	g.Expect(recorder.Code).To(Equal(http.StatusNotFound))
}
