package camera

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// VideoCaptureDevice is the production Device backed by OpenCV video capture.
// Host platforms expose no queryable camera permission registry, so the probe
// always reports unsupported and the adapter falls through to a direct open.
type VideoCaptureDevice struct {
	DeviceID int
}

func (d *VideoCaptureDevice) QueryPermission(ctx context.Context) (PermissionState, error) {
	return PermissionPrompt, ErrPermissionQueryUnsupported
}

func (d *VideoCaptureDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	vc, err := gocv.OpenVideoCapture(d.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w: %w", d.DeviceID, ErrDeviceNotFound, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("capture device %d: %w", d.DeviceID, ErrDeviceBusy)
	}

	// Constraint sets are best-effort; OpenCV silently keeps the nearest
	// supported resolution, which matches the ideal-constraint semantics.
	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	return &videoCaptureStream{vc: vc}, nil
}

type videoCaptureStream struct {
	vc     *gocv.VideoCapture
	closed bool
}

func (s *videoCaptureStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if s.closed {
		return nil, ErrNoActiveStream
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("read frame: %w", ErrDeviceBusy)
	}

	frame, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return frame, nil
}

func (s *videoCaptureStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.vc.Close()
}
