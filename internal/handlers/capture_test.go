package handlers

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlens/api/internal/camera"
	"farmlens/api/internal/predict"
	"farmlens/api/internal/service"
)

type stubCameraDevice struct {
	permission camera.PermissionState
	openErr    error
}

func (d stubCameraDevice) QueryPermission(ctx context.Context) (camera.PermissionState, error) {
	if d.permission == "" {
		return "", camera.ErrPermissionQueryUnsupported
	}
	return d.permission, nil
}

func (d stubCameraDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return stubCameraStream{}, nil
}

type stubCameraStream struct{}

func (stubCameraStream) ReadFrame(ctx context.Context) (image.Image, error) {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			frame.Set(x, y, color.RGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	return frame, nil
}

func (stubCameraStream) Close() error { return nil }

func TestCaptureScanWithoutDevice(t *testing.T) {
	h := HandlerSet{log: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/capture", nil)
	c, w := newAuthedContext(t, req)
	h.CaptureScan(c)

	require.Equal(t, http.StatusNotImplemented, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(camera.FailureUnsupported), resp["kind"])
	assert.Equal(t, "upload", resp["fallback"])
}

func TestCaptureScanDurableDeny(t *testing.T) {
	h := HandlerSet{
		log:          zerolog.Nop(),
		cameraDevice: stubCameraDevice{permission: camera.PermissionDenied},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/capture", nil)
	c, w := newAuthedContext(t, req)
	h.CaptureScan(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(camera.FailurePermissionDenied))
}

func TestCaptureScanDeviceMissing(t *testing.T) {
	h := HandlerSet{
		log:          zerolog.Nop(),
		cameraDevice: stubCameraDevice{openErr: camera.ErrDeviceNotFound},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/capture", nil)
	c, w := newAuthedContext(t, req)
	h.CaptureScan(c)

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "upload", resp["fallback"])
}

func TestCaptureScanAnalyzesStill(t *testing.T) {
	store := &memoryScanStore{}
	pred := stubPredictor{result: predict.Result{Predictions: []predict.Prediction{
		{Breed: "Angus", Score: 0.91},
	}}}
	svc := service.NewScanService(store, &memoryImageStore{}, pred, noopLock{}, zerolog.Nop())

	h := HandlerSet{
		log:          zerolog.Nop(),
		scanService:  svc,
		cameraDevice: stubCameraDevice{permission: camera.PermissionGranted},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/capture", nil)
	c, w := newAuthedContext(t, req)
	h.CaptureScan(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.records, 1)
	for _, record := range store.records {
		assert.Equal(t, "Angus", record.PredictedBreed)
		assert.Equal(t, "owner-1", record.OwnerID)
	}
}
