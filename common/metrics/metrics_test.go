package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncoded(t *testing.T) {
	before := testutil.ToFloat64(EnvelopesEncoded.WithLabelValues("event"))

	RecordEncoded("event", 120)
	RecordEncoded("event", 300)

	assert.Equal(t, before+2, testutil.ToFloat64(EnvelopesEncoded.WithLabelValues("event")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(EnvelopeBytes), 1)
}

func TestRecordPublished(t *testing.T) {
	tests := []struct {
		status string
	}{
		{StatusSuccess},
		{StatusInvalid},
		{StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := EnvelopesPublished.WithLabelValues("command", tt.status)
			before := testutil.ToFloat64(c)

			samples := publishSamples(t)

			RecordPublished("command", tt.status)

			assert.Equal(t, before+1, testutil.ToFloat64(c))
			assert.Equal(t, samples, publishSamples(t), "counting an attempt must not observe a duration")
		})
	}
}

func TestObservePublishDuration(t *testing.T) {
	before := publishSamples(t)

	ObservePublishDuration(0.002)
	ObservePublishDuration(0.5)

	assert.Equal(t, before+2, publishSamples(t))
}

func publishSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, PublishDuration.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetricNames(t *testing.T) {
	RecordEncoded("command", 10)
	RecordPublished("command", StatusSuccess)
	ObservePublishDuration(0.001)

	tests := []struct {
		collector prometheus.Collector
		name      string
	}{
		{EnvelopesEncoded, "ibridge_envelopes_encoded_total"},
		{EnvelopeBytes, "ibridge_envelope_bytes"},
		{EnvelopesPublished, "ibridge_envelopes_published_total"},
		{PublishDuration, "ibridge_publish_duration_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Positive(t, testutil.CollectAndCount(tt.collector, tt.name))

			problems, err := testutil.CollectAndLint(tt.collector, tt.name)
			require.NoError(t, err)
			assert.Empty(t, problems)
		})
	}
}
