package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ObserveSeedAndRun(t *testing.T) {
	t.Parallel()
	c := New()

	c.ObserveSeed(3)
	c.ObserveSeed(5)
	c.ObserveRun(42, 250*time.Millisecond)

	if got := testutil.ToFloat64(c.SeedsComputed); got != 2 {
		t.Errorf("seeds_computed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.LastRunNodes); got != 42 {
		t.Errorf("last_run_nodes = %v, want 42", got)
	}
	if got := testutil.CollectAndCount(c.RunDuration); got != 1 {
		t.Errorf("run_duration_seconds series = %d, want 1", got)
	}
}

func TestCollector_ObserveBuild(t *testing.T) {
	t.Parallel()
	c := New()

	c.ObserveBuild(map[string]int{"self_loop": 2, "unknown_account": 1})
	c.ObserveBuild(map[string]int{"self_loop": 1})

	if got := testutil.ToFloat64(c.GraphsBuilt); got != 2 {
		t.Errorf("graphs_built_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.InteractionsDropped.WithLabelValues("self_loop")); got != 3 {
		t.Errorf("dropped{self_loop} = %v, want 3", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	t.Parallel()
	var c *Collector
	c.ObserveSeed(1)
	c.ObserveRun(1, time.Second)
	c.ObserveBuild(map[string]int{"x": 1})
	if c.Registry() != nil {
		t.Error("nil collector should have nil registry")
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	t.Parallel()
	// Two collectors in one process must not panic on duplicate registration.
	a, b := New(), New()
	a.ObserveSeed(1)
	if got := testutil.ToFloat64(b.SeedsComputed); got != 0 {
		t.Errorf("collector b saw %v seeds, want 0", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()
	c := New()
	c.ObserveSeed(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "contagion_seeds_computed_total 1") {
		t.Errorf("body missing seeds counter:\n%s", rec.Body.String())
	}
}
