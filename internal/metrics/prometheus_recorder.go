package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespaceConstant   = "toolbump"
	versionLabelConstant       = "version"
	resultLabelConstant        = "result"
	strategyLabelConstant      = "strategy"
	outcomeLabelConstant       = "outcome"
	stateLabelConstant         = "state"
	textfileWriteErrorTemplate = "unable to write metrics textfile %s: %w"
)

var stepDurationBuckets = []float64{5, 15, 30, 60, 120, 300, 600, 900}

// PrometheusRecorder implements Recorder on a private Prometheus registry.
type PrometheusRecorder struct {
	registry           *prometheus.Registry
	stepDuration       *prometheus.HistogramVec
	buildVerifications *prometheus.CounterVec
	runOutcomes        *prometheus.CounterVec
	stateTransitions   *prometheus.CounterVec
}

// NewPrometheusRecorder constructs and registers the upgrade metrics. A nil registry creates a private one.
func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	recorder := &PrometheusRecorder{
		registry: registry,
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "step_duration_seconds",
			Help:      "Duration of upgrade steps by target version and result",
			Buckets:   stepDurationBuckets,
		}, []string{versionLabelConstant, resultLabelConstant}),
		buildVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "build_verifications_total",
			Help:      "Build verifications by strategy and result",
		}, []string{strategyLabelConstant, resultLabelConstant}),
		runOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "run_outcomes_total",
			Help:      "Upgrade runs by final state",
		}, []string{outcomeLabelConstant}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "state_transitions_total",
			Help:      "Orchestrator state transitions by entered state",
		}, []string{stateLabelConstant}),
	}
	registry.MustRegister(recorder.stepDuration, recorder.buildVerifications, recorder.runOutcomes, recorder.stateTransitions)
	return recorder
}

// ObserveStepDuration implements Recorder.
func (recorder *PrometheusRecorder) ObserveStepDuration(version string, result ResultLabel, duration time.Duration) {
	recorder.stepDuration.WithLabelValues(version, string(result)).Observe(duration.Seconds())
}

// IncBuildVerification implements Recorder.
func (recorder *PrometheusRecorder) IncBuildVerification(strategy string, result ResultLabel) {
	recorder.buildVerifications.WithLabelValues(strategy, string(result)).Inc()
}

// IncRunOutcome implements Recorder.
func (recorder *PrometheusRecorder) IncRunOutcome(outcome string) {
	recorder.runOutcomes.WithLabelValues(outcome).Inc()
}

// IncStateTransition implements Recorder.
func (recorder *PrometheusRecorder) IncStateTransition(state string) {
	recorder.stateTransitions.WithLabelValues(state).Inc()
}

// Registry exposes the underlying registry.
func (recorder *PrometheusRecorder) Registry() *prometheus.Registry {
	return recorder.registry
}

// WriteTextfile writes the registry in the Prometheus text format, suitable for the node exporter textfile collector.
func (recorder *PrometheusRecorder) WriteTextfile(filePath string) error {
	if writeError := prometheus.WriteToTextfile(filePath, recorder.registry); writeError != nil {
		return fmt.Errorf(textfileWriteErrorTemplate, filePath, writeError)
	}
	return nil
}
