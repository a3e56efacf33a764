package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	stageResults  *prom.CounterVec
	runOutcome    *prom.CounterVec
	stageRetries  *prom.CounterVec
	pushRetries   prom.Counter
	queueDepth    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics against reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpub",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual run stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "docpub",
		Name:      "run_duration_seconds",
		Help:      "Total publish run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpub",
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpub",
		Name:      "run_outcomes_total",
		Help:      "Run outcomes by final status",
	}, []string{"outcome"})
	pr.stageRetries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpub",
		Name:      "stage_retries_total",
		Help:      "Total stage retries (transient failures)",
	}, []string{"stage"})
	pr.pushRetries = prom.NewCounter(prom.CounterOpts{
		Namespace: "docpub",
		Name:      "push_retries_total",
		Help:      "Total retried push operations",
	})
	pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
		Namespace: "docpub",
		Name:      "queue_depth",
		Help:      "Number of runs waiting in the daemon queue",
	})
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome, pr.stageRetries, pr.pushRetries, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncStageRetry(stage string) {
	if p == nil || p.stageRetries == nil {
		return
	}
	p.stageRetries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncPushRetry() {
	if p == nil || p.pushRetries == nil {
		return
	}
	p.pushRetries.Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}
