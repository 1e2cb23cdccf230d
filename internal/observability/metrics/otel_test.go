package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewProviderDisabledIsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.NoError(t, Install(Config{}, provider))
	t.Cleanup(func() { mirror.Store(nil) })

	RecordInvitation("property", "pending")
	RecordTeamSync()
}

func TestNewProviderRejectsUnknownProtocol(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterProtocol: "carrier-pigeon"}, nil)
	require.Error(t, err)
}

func TestRecordersMirrorToOtel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, Install(Config{ServiceName: "proppass-test"}, provider))
	t.Cleanup(func() { mirror.Store(nil) })

	RecordInvitation("property", "pending")
	RecordInvitation("property", "pending")
	RecordUsageCost("email", 0.25)
	RecordUsageCost("email", 0)
	RecordSchedulerError("expire_invitations", SchedulerReasonTimeout)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	got := map[string]metricdata.Aggregation{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			got[m.Name] = m.Data
		}
	}

	invites, ok := got["proppass.invitations"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, invites.DataPoints, 1)
	assert.Equal(t, int64(2), invites.DataPoints[0].Value)

	cost, ok := got["proppass.usage_cost"].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, cost.DataPoints, 1)
	assert.InDelta(t, 0.25, cost.DataPoints[0].Value, 1e-9)

	jobErrors, ok := got["proppass.scheduler.job_errors"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, jobErrors.DataPoints, 1)
	assert.Equal(t, int64(1), jobErrors.DataPoints[0].Value)
}
