package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmlens/api/internal/media/sniffer"
	"farmlens/api/internal/media/source"
	"farmlens/api/internal/models"
	"farmlens/api/internal/repository"
	"farmlens/api/internal/service"
)

// MaxUploadSize bounds one scan image payload.
const MaxUploadSize = 20 << 20

type scanResponse struct {
	ID              string    `json:"id"`
	ImageURL        string    `json:"imageUrl"`
	ImageFilename   string    `json:"imageFilename"`
	PredictedBreed  string    `json:"predictedBreed"`
	ConfidenceScore float64   `json:"confidenceScore"`
	CreatedAt       time.Time `json:"createdAt"`
}

type predictionResponse struct {
	Breed string  `json:"breed"`
	Score float64 `json:"score"`
}

type analyzeResponse struct {
	Scan        scanResponse         `json:"scan"`
	Predictions []predictionResponse `json:"predictions"`
	History     []scanResponse       `json:"history"`
}

func (h HandlerSet) AnalyzeScan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrNoInputSelected.Error()})
		return
	}
	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer file.Close()

	img, err := source.FromReader(header.Filename, file)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.scanService.Analyze(c.Request.Context(), service.AnalyzeInput{
		Owner: user,
		Image: img,
	})
	if err != nil {
		h.sendScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAnalyzeResponse(result))
}

func (h HandlerSet) ListScans(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
		return
	}

	scans, err := h.scanService.List(c.Request.Context(), user)
	if err != nil {
		h.sendScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"scans": toScanResponses(scans)})
}

func (h HandlerSet) DeleteScan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
		return
	}

	scanID := c.Param("id")
	if scanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scan id required"})
		return
	}

	if err := h.scanService.Remove(c.Request.Context(), user, scanID); err != nil {
		h.sendScanError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) sendScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoInputSelected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAnalysisInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAnalysisLockFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrScanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
	case errors.Is(err, service.ErrUploadFailed), errors.Is(err, service.ErrPredictionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func toAnalyzeResponse(result service.AnalyzeResult) analyzeResponse {
	predictions := make([]predictionResponse, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		predictions = append(predictions, predictionResponse{Breed: p.Breed, Score: p.Score})
	}

	return analyzeResponse{
		Scan:        toScanResponse(result.Record),
		Predictions: predictions,
		History:     toScanResponses(result.History),
	}
}

func toScanResponses(scans []models.ScanRecord) []scanResponse {
	resp := make([]scanResponse, 0, len(scans))
	for _, scan := range scans {
		resp = append(resp, toScanResponse(scan))
	}
	return resp
}

func toScanResponse(scan models.ScanRecord) scanResponse {
	return scanResponse{
		ID:              scan.ID,
		ImageURL:        scan.ImageURL,
		ImageFilename:   scan.ImageKey,
		PredictedBreed:  scan.PredictedBreed,
		ConfidenceScore: scan.ConfidenceScore,
		CreatedAt:       scan.CreatedAt,
	}
}
