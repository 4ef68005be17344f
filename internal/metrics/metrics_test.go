package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if visitsTotal == nil || sitesTotal == nil || activeWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveSite(t *testing.T) {
	Init()
	before := testutil.ToFloat64(sitesTotal.WithLabelValues("success"))
	ObserveSite("success")
	if got := testutil.ToFloat64(sitesTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("expected sites counter to grow by 1, got %f -> %f", before, got)
	}
}

func TestHandlerExposesVisitMetrics(t *testing.T) {
	ObserveVisit("primary", "success", 3*time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "pagegraph_visits_total") {
		t.Error("expected pagegraph_visits_total in exposition")
	}
}
