package domain

import "time"

// DeviceMaxAge is how long a device stays usable after it was last seen.
const DeviceMaxAge = 7 * 24 * time.Hour

type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// Verdict is derived at check time and never stored.
type Verdict struct {
	CanRead  bool `json:"canRead"`
	CanWrite bool `json:"canWrite"`
}

// Allows reports whether the verdict grants c.
func (v Verdict) Allows(c Capability) bool {
	switch c {
	case CapabilityRead:
		return v.CanRead
	case CapabilityWrite:
		return v.CanWrite
	default:
		return false
	}
}

// IsExpired reports whether more than maxAge has elapsed since the device was last seen.
func (d *Device) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(d.LastSeenAt) > maxAge
}

// Evaluate derives the effective capabilities of d at now.
// Write is always gated through read: a stored write flag never grants
// anything by itself.
func Evaluate(d *Device, now time.Time, maxAge time.Duration) Verdict {
	if d == nil {
		return Verdict{}
	}
	canRead := d.ReadCapability && d.Active && !d.IsExpired(now, maxAge)
	return Verdict{
		CanRead:  canRead,
		CanWrite: d.WriteCapability && canRead,
	}
}
