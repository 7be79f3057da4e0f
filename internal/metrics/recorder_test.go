package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("compile", time.Second)
	r.ObserveBuildDuration(time.Second)
	r.IncStageResult("compile", ResultSuccess)
	r.IncBuildOutcome("success")
	r.IncDepCacheHit()
	r.IncDepCacheMiss()
	r.IncRebuild("source")
	r.SetLiveReloadClients(2)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveStageDuration("compile", time.Second)
	p.IncBuildOutcome("failed")
	p.IncDepCacheHit()
	p.SetLiveReloadClients(0)
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)

	p.IncDepCacheHit()
	p.IncDepCacheHit()
	p.IncDepCacheMiss()
	p.IncRebuild("source")
	p.IncBuildOutcome("success")
	p.SetLiveReloadClients(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.depCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.depCacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rebuilds.WithLabelValues("source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.buildOutcome.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.livereloadClients))
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)
	p.ObserveStageDuration("compile", 100*time.Millisecond)
	p.ObserveBuildDuration(time.Second)
	p.IncStageResult("compile", ResultSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["biblebuild_stage_duration_seconds"])
	assert.True(t, names["biblebuild_build_duration_seconds"])
	assert.True(t, names["biblebuild_stage_results_total"])
}
