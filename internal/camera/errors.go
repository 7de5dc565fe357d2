package camera

import "errors"

// FailureKind categorizes why camera access failed. Each kind maps to one
// user-facing message; NotFound and Unsupported additionally surface the
// switch-to-file-upload fallback.
type FailureKind string

const (
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureDeviceNotFound   FailureKind = "device_not_found"
	FailureDeviceBusy       FailureKind = "device_busy"
	FailureUnsupported      FailureKind = "unsupported"
	FailureUnknown          FailureKind = "unknown"
)

// AccessError is the adapter's classified access failure.
type AccessError struct {
	Kind    FailureKind
	Message string
	// Fallback is set when switching to file upload is the suggested way out.
	Fallback bool
	cause    error
}

func (e *AccessError) Error() string {
	return e.Message
}

func (e *AccessError) Unwrap() error {
	return e.cause
}

func classifyAccessError(err error) *AccessError {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return &AccessError{
			Kind:    FailurePermissionDenied,
			Message: "Camera access was denied. Please allow camera permissions and try again.",
			cause:   err,
		}
	case errors.Is(err, ErrDeviceNotFound):
		return &AccessError{
			Kind:     FailureDeviceNotFound,
			Message:  "No camera found on this device. Please use file upload instead.",
			Fallback: true,
			cause:    err,
		}
	case errors.Is(err, ErrDeviceBusy):
		return &AccessError{
			Kind:    FailureDeviceBusy,
			Message: "Camera is already in use by another application. Please close it and try again.",
			cause:   err,
		}
	case errors.Is(err, ErrUnsupported):
		return &AccessError{
			Kind:     FailureUnsupported,
			Message:  "Camera capture is not supported here. Please use file upload instead.",
			Fallback: true,
			cause:    err,
		}
	default:
		return &AccessError{
			Kind:    FailureUnknown,
			Message: "Camera access failed. Please try file upload instead.",
			cause:   err,
		}
	}
}

func durableDenyError() *AccessError {
	return &AccessError{
		Kind:    FailurePermissionDenied,
		Message: "Camera access was previously denied. Please change the camera permission in your browser settings to allow access.",
	}
}
