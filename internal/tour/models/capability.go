package models

import (
	"fmt"
	"strings"
)

// DeviceCapability buckets the runtime into a rendering tier.
type DeviceCapability int

const (
	CapabilityLow DeviceCapability = iota
	CapabilityMedium
	CapabilityHigh
)

func (c DeviceCapability) String() string {
	switch c {
	case CapabilityLow:
		return "low"
	case CapabilityMedium:
		return "medium"
	case CapabilityHigh:
		return "high"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Step moves delta tiers, clamped to [low, high].
func (c DeviceCapability) Step(delta int) DeviceCapability {
	n := int(c) + delta
	if n < int(CapabilityLow) {
		n = int(CapabilityLow)
	}
	if n > int(CapabilityHigh) {
		n = int(CapabilityHigh)
	}
	return DeviceCapability(n)
}

func ParseCapability(s string) (DeviceCapability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return CapabilityLow, nil
	case "medium":
		return CapabilityMedium, nil
	case "high":
		return CapabilityHigh, nil
	}
	return CapabilityLow, fmt.Errorf("unknown device capability %q", s)
}

func (c DeviceCapability) MarshalText() ([]byte, error) {
	if c < CapabilityLow || c > CapabilityHigh {
		return nil, fmt.Errorf("invalid device capability %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *DeviceCapability) UnmarshalText(b []byte) error {
	v, err := ParseCapability(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
