package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of the acquisition lifecycle:
//
//	Idle -> Requesting -> Streaming -> Captured -> Idle
//
// Retake returns Captured to Streaming, Accept moves the still out and
// returns to Idle. Requesting moves to Error on any failure; from Error the
// caller either retries (back to Requesting) or escapes to Idle via the
// upload fallback.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStreaming  State = "streaming"
	StateCaptured   State = "captured"
	StateError      State = "error"
)

// Still is one captured frame, already lossy-compressed.
type Still struct {
	Data    []byte
	TakenAt time.Time
}

var ErrNoActiveStream = errors.New("no active stream")

const captureQuality = 80 // jpeg quality, matches the 0.8 capture setting

// Adapter owns the live camera stream for one open/close cycle. Release is
// the resource-safety contract: it must run on every exit path and is
// idempotent.
type Adapter struct {
	device Device
	log    zerolog.Logger

	mu       sync.Mutex
	state    State
	stream   Stream
	captured *Still
	lastErr  *AccessError
}

func NewAdapter(device Device, log zerolog.Logger) *Adapter {
	return &Adapter{
		device: device,
		log:    log,
		state:  StateIdle,
	}
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the classified failure while in the Error state.
func (a *Adapter) Err() *AccessError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// RequestAccess acquires a live stream. It probes the permission registry
// first and short-circuits on a durable deny without prompting again. The
// preferred constraints are tried first; on a constraint failure the request
// is retried unconstrained so any available camera can serve.
func (a *Adapter) RequestAccess(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIdle && a.state != StateError {
		a.mu.Unlock()
		return nil
	}
	a.state = StateRequesting
	a.lastErr = nil
	a.mu.Unlock()

	if state, err := a.device.QueryPermission(ctx); err == nil && state == PermissionDenied {
		return a.fail(durableDenyError())
	}
	// A failed probe is expected on platforms without a permission registry;
	// proceed with a direct access attempt.

	stream, err := a.device.Open(ctx, DefaultConstraints)
	if err != nil && errors.Is(err, ErrConstraintFailed) {
		a.log.Debug().Msg("preferred capture constraints rejected, retrying unconstrained")
		stream, err = a.device.Open(ctx, Constraints{})
	}
	if err != nil {
		return a.fail(classifyAccessError(err))
	}

	a.mu.Lock()
	a.stream = stream
	a.state = StateStreaming
	a.mu.Unlock()
	return nil
}

// CaptureFrame takes a still from the live stream at its native resolution.
// Calling it without an active stream is a precondition violation and leaves
// the adapter untouched.
func (a *Adapter) CaptureFrame(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateStreaming || a.stream == nil {
		a.mu.Unlock()
		return ErrNoActiveStream
	}
	stream := a.stream
	a.mu.Unlock()

	frame, err := stream.ReadFrame(ctx)
	if err != nil {
		return a.fail(classifyAccessError(err))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: captureQuality}); err != nil {
		return a.fail(classifyAccessError(err))
	}

	a.mu.Lock()
	a.captured = &Still{Data: buf.Bytes(), TakenAt: time.Now()}
	a.state = StateCaptured
	a.mu.Unlock()
	return nil
}

// Retake discards the pending still and returns to the live stream.
func (a *Adapter) Retake() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateCaptured {
		return
	}
	a.captured = nil
	a.state = StateStreaming
}

// Accept moves the captured still out to the caller, releases the camera and
// returns the adapter to Idle.
func (a *Adapter) Accept() (Still, error) {
	a.mu.Lock()
	if a.state != StateCaptured || a.captured == nil {
		a.mu.Unlock()
		return Still{}, ErrNoActiveStream
	}
	still := *a.captured
	a.mu.Unlock()

	a.Release()
	return still, nil
}

// Release stops the stream tracks and clears all held state. Idempotent;
// every exit path (accept, cancel, teardown, fallback) goes through here.
func (a *Adapter) Release() {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.captured = nil
	a.lastErr = nil
	a.state = StateIdle
	a.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			a.log.Warn().Err(err).Msg("camera stream close failed")
		}
	}
}

func (a *Adapter) fail(accessErr *AccessError) error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.captured = nil
	a.lastErr = accessErr
	a.state = StateError
	a.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}

	a.log.Warn().Str("kind", string(accessErr.Kind)).Msg("camera access failed")
	return accessErr
}
