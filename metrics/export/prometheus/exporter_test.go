package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/campuskit/authcore/internal/metrics"
)

type staticSource struct {
	snapshot metrics.Snapshot
	dropped  uint64
}

func (s *staticSource) MetricsSnapshot() metrics.Snapshot { return s.snapshot }
func (s *staticSource) AuditDropped() uint64              { return s.dropped }

func TestCollectorExposesCounters(t *testing.T) {
	set := metrics.NewSet()
	set.Inc(metrics.LoginSuccess)
	set.Inc(metrics.LoginSuccess)
	set.Inc(metrics.TokenRevoked)

	source := &staticSource{snapshot: set.Snapshot(), dropped: 7}
	collector := NewCollector(source, "authcore")

	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(collector); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := strings.NewReader(`
# HELP authcore_audit_dropped_total Audit events discarded because the dispatcher buffer was full.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 7
# HELP authcore_login_success_total Security core counter login_success_total.
# TYPE authcore_login_success_total counter
authcore_login_success_total 2
# HELP authcore_token_revoked_total Security core counter token_revoked_total.
# TYPE authcore_token_revoked_total counter
authcore_token_revoked_total 1
`)
	err := testutil.GatherAndCompare(registry, expected,
		"authcore_login_success_total",
		"authcore_token_revoked_total",
		"authcore_audit_dropped_total",
	)
	if err != nil {
		t.Fatalf("GatherAndCompare: %v", err)
	}
}

func TestCollectorDefaultNamespace(t *testing.T) {
	source := &staticSource{snapshot: metrics.NewSet().Snapshot()}
	collector := NewCollector(source, "")

	count := testutil.CollectAndCount(collector)
	// One series per counter plus the dropped-events series.
	if want := metrics.Count + 1; count != want {
		t.Fatalf("collected %d series, want %d", count, want)
	}
}
