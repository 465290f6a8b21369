package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ReservationCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ReservationsCreated(3)
	m.ReservationsCreated(1)
	m.ReservationConflict()
	m.ReservationUpdated()
	m.ReservationUpdated()
	m.ReservationCanceled()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "created", got: testutil.ToFloat64(m.reservationsCreated), want: 4},
		{name: "conflicts", got: testutil.ToFloat64(m.conflicts), want: 1},
		{name: "updates", got: testutil.ToFloat64(m.updates), want: 2},
		{name: "cancellations", got: testutil.ToFloat64(m.cancellations), want: 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}

func TestMetrics_ObserveRequest(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest(http.MethodPost, "POST /reservations", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "POST /reservations", http.StatusConflict, 5*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "POST /reservations", http.StatusCreated, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodPost, "POST /reservations", "201")); got != 2 {
		t.Fatalf("expected 2 created requests, got %v", got)
	}
	if got := testutil.CollectAndCount(m.requestDuration); got != 2 {
		t.Fatalf("expected 2 histogram series, got %d", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ReservationsCreated(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "scheduler_reservations_created_total 2") {
		t.Fatalf("expected counter in exposition output, got %s", body)
	}
}
