package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegister(reg) })
	require.Panics(t, func() { MustRegister(reg) })
}

func TestObserveNetworkRequestLabelsStatus(t *testing.T) {
	ok := NetworkRequestTotal.WithLabelValues("postgres", "publish_post", "posts", "success")
	failed := NetworkRequestTotal.WithLabelValues("postgres", "publish_post", "posts", "error")
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveNetworkRequest("postgres", "publish_post", "posts", time.Now(), nil)
	ObserveNetworkRequest("postgres", "publish_post", "posts", time.Now(), errors.New("boom"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestObserveLLMGenerationDerivesTotal(t *testing.T) {
	total := LLMTokensTotal.WithLabelValues("test-model", "total")
	before := testutil.ToFloat64(total)

	ObserveLLMGeneration("test-model", time.Second, 30, 12, 0)

	assert.Equal(t, before+42, testutil.ToFloat64(total))
}

func TestGhostCounters(t *testing.T) {
	published := GhostPublishedTotal.WithLabelValues("reply")
	before := testutil.ToFloat64(published)
	IncPublished("reply")
	IncPublished("reply")
	assert.Equal(t, before+2, testutil.ToFloat64(published))

	SetPoolUnused("expert", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(GhostPoolUnused.WithLabelValues("expert")))

	runs := GhostRunsTotal.WithLabelValues("skipped")
	beforeRuns := testutil.ToFloat64(runs)
	ObserveRun("skipped", 10*time.Millisecond)
	assert.Equal(t, beforeRuns+1, testutil.ToFloat64(runs))
}
