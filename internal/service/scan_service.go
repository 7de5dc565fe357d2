package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"farmlens/api/internal/ids"
	"farmlens/api/internal/media/source"
	"farmlens/api/internal/models"
	"farmlens/api/internal/predict"
	"farmlens/api/internal/repository"
)

// ScanStore is the row store surface the workflow needs.
type ScanStore interface {
	Create(ctx context.Context, scan models.ScanRecord) error
	GetByID(ctx context.Context, id string) (models.ScanRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ScanRecord, error)
	Delete(ctx context.Context, id string) error
}

// ImageStore is the object storage surface the workflow needs.
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Predictor calls the external breed prediction endpoint.
type Predictor interface {
	Predict(ctx context.Context, imageURL string) (predict.Result, error)
}

// InFlightLock enforces one analysis per identity at a time.
type InFlightLock interface {
	Acquire(ctx context.Context, ownerID string) (bool, error)
	Release(ctx context.Context, ownerID string) error
}

// AnalyzeInput is one analysis request: the authenticated owner and the
// resolved image, whichever way it was acquired.
type AnalyzeInput struct {
	Owner models.User
	Image source.SourceImage
}

// AnalyzeResult carries the persisted record, the full ranked guess list for
// display, and the refreshed history.
type AnalyzeResult struct {
	Record      models.ScanRecord
	Predictions []predict.Prediction
	History     []models.ScanRecord
}

// ScanService orchestrates the capture/upload -> predict -> persist workflow
// and the scan history. One successful run creates exactly one stored object
// and one record.
type ScanService struct {
	scans  ScanStore
	images ImageStore
	pred   Predictor
	lock   InFlightLock
	log    zerolog.Logger
	now    func() time.Time
}

func NewScanService(scans ScanStore, images ImageStore, pred Predictor, lock InFlightLock, log zerolog.Logger) *ScanService {
	return &ScanService{
		scans:  scans,
		images: images,
		pred:   pred,
		lock:   lock,
		log:    log,
		now:    time.Now,
	}
}

// Analyze runs the full workflow. Preconditions fail before any network
// traffic. Upload failure aborts with no record; persist failure triggers a
// compensating object delete so a successful run is the only way both sides
// come into existence.
func (s *ScanService) Analyze(ctx context.Context, input AnalyzeInput) (AnalyzeResult, error) {
	if len(input.Image.Data) == 0 {
		return AnalyzeResult{}, ErrNoInputSelected
	}
	if input.Owner.ID == "" {
		return AnalyzeResult{}, ErrUnauthenticated
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, input.Owner.ID)
		if err != nil {
			return AnalyzeResult{}, fmt.Errorf("%w: %v", ErrAnalysisLockFailed, err)
		}
		if !acquired {
			return AnalyzeResult{}, ErrAnalysisInFlight
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), input.Owner.ID); err != nil {
				s.log.Warn().Err(err).Str("owner_id", input.Owner.ID).Msg("analysis lock release failed")
			}
		}()
	}

	key := s.buildImageKey(input.Owner.ID, input.Image)

	if err := s.images.Upload(ctx, key, input.Image.Data, input.Image.ContentType); err != nil {
		return AnalyzeResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	imageURL := s.images.PublicURL(key)

	result, err := s.pred.Predict(ctx, imageURL)
	if err != nil {
		var endpointErr *predict.EndpointError
		if errors.As(err, &endpointErr) && endpointErr.Reason != "" {
			return AnalyzeResult{}, fmt.Errorf("%w: %s", ErrPredictionFailed, endpointErr.Reason)
		}
		return AnalyzeResult{}, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}

	top := result.Top()
	record := models.ScanRecord{
		ID:              ids.New(),
		OwnerID:         input.Owner.ID,
		ImageKey:        key,
		PredictedBreed:  top.Breed,
		ConfidenceScore: top.Score,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.scans.Create(ctx, record); err != nil {
		// Compensate so the stored object does not outlive the failed row.
		if rmErr := s.images.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			s.log.Error().Err(rmErr).Str("image_key", key).Msg("compensating object delete failed, sweeper will reclaim")
		}
		return AnalyzeResult{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	record.ImageURL = imageURL

	history, err := s.List(ctx, input.Owner)
	if err != nil {
		// The scan itself succeeded; a stale sidebar is not worth failing it.
		s.log.Warn().Err(err).Str("owner_id", input.Owner.ID).Msg("history refresh failed")
		history = nil
	}

	s.log.Info().
		Str("owner_id", input.Owner.ID).
		Str("scan_id", record.ID).
		Str("breed", record.PredictedBreed).
		Float64("score", record.ConfidenceScore).
		Msg("analysis complete")

	return AnalyzeResult{
		Record:      record,
		Predictions: result.Predictions,
		History:     history,
	}, nil
}

// List returns the owner's scans newest first, re-deriving every public
// image reference at read time.
func (s *ScanService) List(ctx context.Context, owner models.User) ([]models.ScanRecord, error) {
	if owner.ID == "" {
		return nil, ErrUnauthenticated
	}

	scans, err := s.scans.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	for i := range scans {
		scans[i].ImageURL = s.images.PublicURL(scans[i].ImageKey)
	}
	return scans, nil
}

// Remove deletes a scan: the stored object first, then the row. A failed
// object delete keeps the row, so a record never silently references a
// missing object and a dangling object never survives a removed record.
func (s *ScanService) Remove(ctx context.Context, owner models.User, scanID string) error {
	if owner.ID == "" {
		return ErrUnauthenticated
	}

	record, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrScanNotFound) {
			return repository.ErrScanNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if record.OwnerID != owner.ID {
		return repository.ErrScanNotFound
	}

	if err := s.images.Remove(ctx, record.ImageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if err := s.scans.Delete(ctx, record.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	s.log.Info().Str("owner_id", owner.ID).Str("scan_id", record.ID).Msg("scan removed")
	return nil
}

func (s *ScanService) buildImageKey(ownerID string, img source.SourceImage) string {
	ext := img.Ext()
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%d%s", ownerID, s.now().UnixMilli(), ext)
}
