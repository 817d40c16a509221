package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ytget/vidfetch/store"
)

func TestMetrics_CountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "vidfetch")
	c, clk := newTestClient(t, store.NewMemory(0), "site", "")
	c.WithMetrics(m)

	_ = c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("missing")
	clk.Advance(time.Hour)
	c.Get("k")

	checks := []struct {
		op, result string
		want       float64
	}{
		{opSet, resultOK, 1},
		{opGet, resultHit, 1},
		{opGet, resultMiss, 1},
		{opGet, resultExpired, 1},
	}
	for _, tc := range checks {
		got := testutil.ToFloat64(m.Operations.WithLabelValues(tc.op, tc.result))
		if got != tc.want {
			t.Errorf("%s/%s = %v, want %v", tc.op, tc.result, got, tc.want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observe(opGet, resultHit)
}
