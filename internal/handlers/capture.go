package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlens/api/internal/camera"
	"farmlens/api/internal/media/source"
	"farmlens/api/internal/service"
)

// CaptureScan drives a host-attached camera through one full acquisition
// cycle and feeds the still straight into the analysis workflow. Field
// stations without a camera get the classified failure plus the
// file-upload fallback hint.
func (h HandlerSet) CaptureScan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
		return
	}

	if h.cameraDevice == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error":    "camera capture is not enabled on this station",
			"kind":     string(camera.FailureUnsupported),
			"fallback": "upload",
		})
		return
	}

	adapter := camera.NewAdapter(h.cameraDevice, h.log)
	defer adapter.Release()

	ctx := c.Request.Context()

	if err := adapter.RequestAccess(ctx); err != nil {
		h.sendCaptureError(c, err)
		return
	}
	if err := adapter.CaptureFrame(ctx); err != nil {
		h.sendCaptureError(c, err)
		return
	}

	still, err := adapter.Accept()
	if err != nil {
		h.sendCaptureError(c, err)
		return
	}

	result, err := h.scanService.Analyze(ctx, service.AnalyzeInput{
		Owner: user,
		Image: source.FromCapture(still.Data, still.TakenAt),
	})
	if err != nil {
		h.sendScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAnalyzeResponse(result))
}

func (h HandlerSet) sendCaptureError(c *gin.Context, err error) {
	var accessErr *camera.AccessError
	if !errors.As(err, &accessErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch accessErr.Kind {
	case camera.FailurePermissionDenied:
		status = http.StatusForbidden
	case camera.FailureDeviceNotFound:
		status = http.StatusNotFound
	case camera.FailureDeviceBusy:
		status = http.StatusConflict
	case camera.FailureUnsupported:
		status = http.StatusNotImplemented
	}

	body := gin.H{
		"error": accessErr.Message,
		"kind":  string(accessErr.Kind),
	}
	if accessErr.Fallback {
		body["fallback"] = "upload"
	}
	c.JSON(status, body)
}
