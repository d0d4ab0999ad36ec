package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tour-engine/internal/tour/models"
)

func TestProfileTable(t *testing.T) {
	assert.Equal(t, Profile{
		Capability: models.CapabilityLow, PixelRatio: 0.5, Antialias: false, Shadows: false,
		MaxLights: 2, TextureResolution: 512, TargetFPS: 30,
	}, ProfileFor(models.CapabilityLow))

	assert.Equal(t, Profile{
		Capability: models.CapabilityMedium, PixelRatio: 0.75, Antialias: true, Shadows: false,
		MaxLights: 3, TextureResolution: 1024, TargetFPS: 45,
	}, ProfileFor(models.CapabilityMedium))

	assert.Equal(t, Profile{
		Capability: models.CapabilityHigh, PixelRatio: 1.0, Antialias: true, Shadows: true,
		MaxLights: 5, TextureResolution: 2048, TargetFPS: 60,
	}, ProfileFor(models.CapabilityHigh))
}

func TestAdjustSteps(t *testing.T) {
	high := ProfileFor(models.CapabilityHigh)
	medium := ProfileFor(models.CapabilityMedium)
	low := ProfileFor(models.CapabilityLow)

	assert.Equal(t, medium, Adjust(high, 10))
	assert.Equal(t, low, Adjust(medium, 10))
	assert.Equal(t, low, Adjust(low, 1))

	assert.Equal(t, medium, Adjust(low, 34))
	assert.Equal(t, high, Adjust(medium, 50))
	assert.Equal(t, high, Adjust(high, 240))

	// inside the hysteresis band
	assert.Equal(t, high, Adjust(high, 48.5))
	assert.Equal(t, medium, Adjust(medium, 49))
	assert.Equal(t, low, Adjust(low, 24))
}

func TestAdjustNeverSkipsTiers(t *testing.T) {
	for _, c := range []models.DeviceCapability{models.CapabilityLow, models.CapabilityMedium, models.CapabilityHigh} {
		for fps := 0.0; fps <= 300; fps += 0.5 {
			next := Adjust(ProfileFor(c), fps)
			diff := int(next.Capability) - int(c)
			assert.LessOrEqual(t, diff, 1)
			assert.GreaterOrEqual(t, diff, -1)
		}
	}
}

func TestAdjustConvergesAtTarget(t *testing.T) {
	for _, c := range []models.DeviceCapability{models.CapabilityLow, models.CapabilityMedium, models.CapabilityHigh} {
		p := ProfileFor(c)
		for i := 0; i < 20; i++ {
			p = Adjust(p, float64(p.TargetFPS))
		}
		assert.Equal(t, c, p.Capability)
	}
}

func TestWithHints(t *testing.T) {
	off := false
	p := WithHints(ProfileFor(models.CapabilityHigh), &models.RenderingHints{TextureResolution: 1024, Shadows: &off})
	assert.Equal(t, 1024, p.TextureResolution)
	assert.False(t, p.Shadows)

	p = WithHints(ProfileFor(models.CapabilityLow), &models.RenderingHints{TextureResolution: 4096})
	assert.Equal(t, 512, p.TextureResolution)

	assert.Equal(t, ProfileFor(models.CapabilityMedium), WithHints(ProfileFor(models.CapabilityMedium), nil))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMonitorSamplesOncePerSecond(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewMonitor(clock.Now)

	assert.False(t, m.Tick())
	assert.Equal(t, 0.0, m.CurrentFPS())

	sampled := 0
	for i := 0; i < 50; i++ {
		clock.Advance(20 * time.Millisecond)
		if m.Tick() {
			sampled++
		}
	}
	assert.Equal(t, 1, sampled)
	assert.True(t, m.Sampled())
	assert.Equal(t, 50.0, m.CurrentFPS())

	for i := 0; i < 25; i++ {
		clock.Advance(40 * time.Millisecond)
		m.Tick()
	}
	assert.Equal(t, 25.0, m.CurrentFPS())
}

func TestMonitorReset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewMonitor(clock.Now)
	m.Tick()
	clock.Advance(500 * time.Millisecond)
	m.Tick()

	m.Reset()
	clock.Advance(10 * time.Second)
	assert.False(t, m.Tick())
	assert.False(t, m.Sampled())
}
