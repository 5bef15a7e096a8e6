package biometric

import "context"

// Prober abstracts the device biometric facility. Implementations wrap the
// platform API (fingerprint, face) behind blocking calls.
type Prober interface {
	// HasHardware reports whether the device has a biometric sensor.
	HasHardware(ctx context.Context) (bool, error)
	// IsEnrolled reports whether the user has enrolled at least one
	// biometric identity at the OS level.
	IsEnrolled(ctx context.Context) (bool, error)
	// Authenticate prompts the user and blocks until they pass, fail, or
	// cancel. A nil return means the user was verified.
	Authenticate(ctx context.Context, reason string) error
}

// Capability is the derived availability state shown to the login surface.
// It is recomputed on every query and never cached.
type Capability struct {
	HardwareAvailable   bool
	Enrolled            bool
	HasStoredCredential bool
}

// Usable reports whether a biometric login can be offered right now.
func (c Capability) Usable() bool {
	return c.HardwareAvailable && c.Enrolled && c.HasStoredCredential
}

// Available queries the prober, treating any probe failure as "unavailable".
// Probe errors never propagate past this point.
func Available(ctx context.Context, p Prober) bool {
	if p == nil {
		return false
	}
	hw, err := p.HasHardware(ctx)
	if err != nil || !hw {
		return false
	}
	enrolled, err := p.IsEnrolled(ctx)
	if err != nil || !enrolled {
		return false
	}
	return true
}
