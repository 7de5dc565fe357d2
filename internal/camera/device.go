package camera

import (
	"context"
	"errors"
	"image"
)

// PermissionState mirrors what a platform permission registry can report
// about camera access before any prompt is shown.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// ErrPermissionQueryUnsupported means the platform has no queryable
// permission registry. The adapter treats it as an expected probing failure
// and proceeds straight to an access attempt.
var ErrPermissionQueryUnsupported = errors.New("permission query not supported")

// Constraints are ideal capture preferences, not hard requirements. A zero
// value asks for any available camera at its default resolution.
type Constraints struct {
	Width      int
	Height     int
	FacingRear bool
}

// DefaultConstraints is the preferred first attempt: rear-facing at 1280x720.
var DefaultConstraints = Constraints{Width: 1280, Height: 720, FacingRear: true}

// Device failure sentinels. Open implementations wrap the platform cause
// around exactly one of these so the adapter can classify it.
var (
	ErrDeviceNotFound   = errors.New("no camera device found")
	ErrDeviceBusy       = errors.New("camera device in use")
	ErrAccessDenied     = errors.New("camera access denied")
	ErrConstraintFailed = errors.New("capture constraints not satisfiable")
	ErrUnsupported      = errors.New("camera capture not supported")
)

// Device abstracts platform camera access so the adapter's lifecycle logic
// can be exercised without hardware.
type Device interface {
	// QueryPermission probes the permission registry without prompting.
	QueryPermission(ctx context.Context) (PermissionState, error)

	// Open acquires a live stream honoring the constraints as far as the
	// hardware allows. Failures wrap one of the sentinel errors above.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one open capture session. Close stops the underlying tracks and
// must be safe to call more than once.
type Stream interface {
	// ReadFrame returns the current frame at the stream's native resolution.
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}
