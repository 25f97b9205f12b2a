package metrics_test

import (
	"testing"

	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister_IsIdempotent(t *testing.T) {
	// Должно выполняться без паники даже при повторном вызове.
	metrics.MustRegister()
	metrics.MustRegister()
}

func TestRecordCounters_Inc(t *testing.T) {
	metrics.MustRegister()

	beforeConsumed := testutil.ToFloat64(metrics.RecordsConsumed.WithLabelValues("bench"))
	beforeProcessed := testutil.ToFloat64(metrics.RecordsProcessed.WithLabelValues("bench", "pool"))
	beforeFailed := testutil.ToFloat64(metrics.RecordsFailed.WithLabelValues("bench", "pool"))

	metrics.RecordsConsumed.WithLabelValues("bench").Inc()
	metrics.RecordsProcessed.WithLabelValues("bench", "pool").Inc()
	metrics.RecordsFailed.WithLabelValues("bench", "pool").Inc()

	if got := testutil.ToFloat64(metrics.RecordsConsumed.WithLabelValues("bench")); got != beforeConsumed+1 {
		t.Fatalf("RecordsConsumed: got=%v want=%v", got, beforeConsumed+1)
	}
	if got := testutil.ToFloat64(metrics.RecordsProcessed.WithLabelValues("bench", "pool")); got != beforeProcessed+1 {
		t.Fatalf("RecordsProcessed: got=%v want=%v", got, beforeProcessed+1)
	}
	if got := testutil.ToFloat64(metrics.RecordsFailed.WithLabelValues("bench", "pool")); got != beforeFailed+1 {
		t.Fatalf("RecordsFailed: got=%v want=%v", got, beforeFailed+1)
	}
}

func TestCommitsTotal_ByResult(t *testing.T) {
	metrics.MustRegister()

	okBefore := testutil.ToFloat64(metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitOK))
	failedBefore := testutil.ToFloat64(metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitFailed))

	metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitOK).Inc()
	metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitOK).Inc()

	if got := testutil.ToFloat64(metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitOK)); got != okBefore+2 {
		t.Fatalf("CommitsTotal(ok): got=%v want=%v", got, okBefore+2)
	}
	if got := testutil.ToFloat64(metrics.CommitsTotal.WithLabelValues("bench", metrics.CommitFailed)); got != failedBefore {
		t.Fatalf("CommitsTotal(failed): got=%v want=%v", got, failedBefore)
	}
}

func TestQueueDepth_GaugeSet(t *testing.T) {
	metrics.MustRegister()

	g := metrics.QueueDepth.WithLabelValues("bench")
	cur := testutil.ToFloat64(g)

	g.Set(cur + 5)
	if got := testutil.ToFloat64(g); got != cur+5 {
		t.Fatalf("QueueDepth after +5: got=%v want=%v", got, cur+5)
	}

	g.Set(cur) // вернуть как было
	if got := testutil.ToFloat64(g); got != cur {
		t.Fatalf("QueueDepth restore: got=%v want=%v", got, cur)
	}
}
