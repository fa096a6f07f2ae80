package prometheus

import (
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

func TestObserverCounts(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := NewObserver("test", reg)
	require.NoError(t, err)

	o.IntentIssued("video")
	o.IntentIssued("video")
	o.IntentRejected("video")
	o.ObjectStored("video", 2048)
	o.Resolved("video", domain.StatusSucceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.intents.WithLabelValues("video", "issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.intents.WithLabelValues("video", "rejected")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(o.storedBytes.WithLabelValues("video")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.resolved.WithLabelValues("video", "SUCCEEDED")))
}

func TestObserverReusesRegisteredCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	first, err := NewObserver("test", reg)
	require.NoError(t, err)
	second, err := NewObserver("test", reg)
	require.NoError(t, err)

	first.IntentIssued("avatar")
	second.IntentIssued("avatar")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.intents.WithLabelValues("avatar", "issued")))
}
