package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordNavigation(t *testing.T) {
	NavigationsTotal.Reset()

	RecordNavigation("hotspot", nil)
	RecordNavigation("hotspot", nil)
	RecordNavigation("selector", errors.New("busy"))

	assert.Equal(t, 2.0, testutil.ToFloat64(NavigationsTotal.WithLabelValues("hotspot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(NavigationsTotal.WithLabelValues("selector", "error")))
}

func TestRecordProfileChangeIgnoresSameTier(t *testing.T) {
	ProfileChangesTotal.Reset()

	RecordProfileChange("high", "medium")
	RecordProfileChange("medium", "medium")

	assert.Equal(t, 1, testutil.CollectAndCount(ProfileChangesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(ProfileChangesTotal.WithLabelValues("high", "medium")))
}

func TestSessionGauge(t *testing.T) {
	SessionsActive.Set(0)
	SessionOpened()
	SessionOpened()
	SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(SessionsActive))
}

func TestRecordAssetLoad(t *testing.T) {
	AssetLoadsTotal.Reset()
	RecordAssetLoad("panorama", "cache", 0.01)
	assert.Equal(t, 1.0, testutil.ToFloat64(AssetLoadsTotal.WithLabelValues("panorama", "cache")))
}
