package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/metrics"
)

func TestPrometheusRecorderCountsMeasurements(testInstance *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	recorder.ObserveStepDuration("5.0.0", metrics.ResultFailed, 95*time.Second)
	recorder.ObserveStepDuration("5.0.1", metrics.ResultPassed, 130*time.Second)
	recorder.IncBuildVerification("modern", metrics.ResultFailed)
	recorder.IncBuildVerification("legacy", metrics.ResultFailed)
	recorder.IncBuildVerification("modern", metrics.ResultPassed)
	recorder.IncRunOutcome("DONE")
	recorder.IncStateTransition("VERIFYING")
	recorder.IncStateTransition("VERIFYING")

	metricFamilies, gatherError := registry.Gather()
	require.NoError(testInstance, gatherError)
	require.Len(testInstance, metricFamilies, 4)

	seriesCounts := map[string]int{}
	for _, metricFamily := range metricFamilies {
		seriesCounts[metricFamily.GetName()] = len(metricFamily.GetMetric())
	}
	require.Equal(testInstance, map[string]int{
		"toolbump_step_duration_seconds":     2,
		"toolbump_build_verifications_total": 3,
		"toolbump_run_outcomes_total":        1,
		"toolbump_state_transitions_total":   1,
	}, seriesCounts)
}

func TestPrometheusRecorderWritesTextfile(testInstance *testing.T) {
	recorder := metrics.NewPrometheusRecorder(nil)
	recorder.IncRunOutcome("FAILED")

	textfilePath := filepath.Join(testInstance.TempDir(), "toolbump.prom")
	require.NoError(testInstance, recorder.WriteTextfile(textfilePath))

	content, readError := os.ReadFile(textfilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(content), `toolbump_run_outcomes_total{outcome="FAILED"} 1`)
}

func TestPrometheusRecorderReportsTextfileFailure(testInstance *testing.T) {
	recorder := metrics.NewPrometheusRecorder(nil)
	require.Error(testInstance, recorder.WriteTextfile(filepath.Join(testInstance.TempDir(), "missing", "toolbump.prom")))
}

func TestResultFor(testInstance *testing.T) {
	require.Equal(testInstance, metrics.ResultPassed, metrics.ResultFor(true))
	require.Equal(testInstance, metrics.ResultFailed, metrics.ResultFor(false))

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	recorder.IncRunOutcome("DONE")
}
