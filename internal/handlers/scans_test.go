package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlens/api/internal/models"
	"farmlens/api/internal/predict"
	"farmlens/api/internal/repository"
	"farmlens/api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryScanStore struct {
	records map[string]models.ScanRecord
	order   []string
}

func (m *memoryScanStore) Create(ctx context.Context, scan models.ScanRecord) error {
	if m.records == nil {
		m.records = make(map[string]models.ScanRecord)
	}
	m.records[scan.ID] = scan
	m.order = append(m.order, scan.ID)
	return nil
}

func (m *memoryScanStore) GetByID(ctx context.Context, id string) (models.ScanRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return models.ScanRecord{}, repository.ErrScanNotFound
	}
	return record, nil
}

func (m *memoryScanStore) ListByOwner(ctx context.Context, ownerID string) ([]models.ScanRecord, error) {
	var scans []models.ScanRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		if record, ok := m.records[m.order[i]]; ok && record.OwnerID == ownerID {
			scans = append(scans, record)
		}
	}
	return scans, nil
}

func (m *memoryScanStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return repository.ErrScanNotFound
	}
	delete(m.records, id)
	return nil
}

type memoryImageStore struct {
	objects map[string][]byte
}

func (m *memoryImageStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func (m *memoryImageStore) Remove(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryImageStore) PublicURL(key string) string {
	return "https://store.test/cattle-images/" + key
}

type stubPredictor struct {
	result predict.Result
	err    error
}

func (s stubPredictor) Predict(ctx context.Context, imageURL string) (predict.Result, error) {
	return s.result, s.err
}

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context, ownerID string) (bool, error) { return true, nil }
func (noopLock) Release(ctx context.Context, ownerID string) error         { return nil }

func newScanHandlerSet(t *testing.T) (HandlerSet, *memoryScanStore) {
	t.Helper()

	store := &memoryScanStore{}
	pred := stubPredictor{result: predict.Result{Predictions: []predict.Prediction{
		{Breed: "Jersey", Score: 0.8},
		{Breed: "Holstein", Score: 0.15},
	}}}
	svc := service.NewScanService(store, &memoryImageStore{}, pred, noopLock{}, zerolog.Nop())

	return HandlerSet{log: zerolog.Nop(), scanService: svc}, store
}

func newAuthedContext(t *testing.T, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("current_user", models.User{ID: "owner-1", Email: "farmer@example.com"})
	return c, w
}

func multipartImage(t *testing.T, filename string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeScanReturnsRankedPredictions(t *testing.T) {
	h, _ := newScanHandlerSet(t)

	body, contentType := multipartImage(t, "cow.jpg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x10})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", body)
	req.Header.Set("Content-Type", contentType)

	c, w := newAuthedContext(t, req)
	h.AnalyzeScan(c)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Scan struct {
			ID              string  `json:"id"`
			ImageURL        string  `json:"imageUrl"`
			PredictedBreed  string  `json:"predictedBreed"`
			ConfidenceScore float64 `json:"confidenceScore"`
		} `json:"scan"`
		Predictions []struct {
			Breed string  `json:"breed"`
			Score float64 `json:"score"`
		} `json:"predictions"`
		History []json.RawMessage `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.Scan.ID)
	assert.Equal(t, "Jersey", resp.Scan.PredictedBreed)
	assert.InDelta(t, 0.8, resp.Scan.ConfidenceScore, 1e-9)
	assert.Contains(t, resp.Scan.ImageURL, "https://store.test/cattle-images/owner-1/")
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "Holstein", resp.Predictions[1].Breed)
	assert.Len(t, resp.History, 1)
}

func TestAnalyzeScanWithoutFile(t *testing.T) {
	// A nil workflow service proves the handler never reaches it.
	h := HandlerSet{log: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", nil)
	c, w := newAuthedContext(t, req)
	h.AnalyzeScan(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), service.ErrNoInputSelected.Error())
}

func TestAnalyzeScanWithoutUser(t *testing.T) {
	h := HandlerSet{log: zerolog.Nop()}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", nil)
	h.AnalyzeScan(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnalyzeScanRejectsNonImagePayload(t *testing.T) {
	h := HandlerSet{log: zerolog.Nop()}

	body, contentType := multipartImage(t, "notes.txt", []byte("plain text, not pixels"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", body)
	req.Header.Set("Content-Type", contentType)

	c, w := newAuthedContext(t, req)
	h.AnalyzeScan(c)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestAnalyzeScanReportsEndpointFailure(t *testing.T) {
	svc := service.NewScanService(&memoryScanStore{}, &memoryImageStore{}, stubPredictor{
		err: &predict.EndpointError{StatusCode: 422, Reason: "not a cattle image"},
	}, noopLock{}, zerolog.Nop())
	h := HandlerSet{log: zerolog.Nop(), scanService: svc}

	body, contentType := multipartImage(t, "cow.jpg", []byte{0xff, 0xd8, 0xff, 0xe0})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", body)
	req.Header.Set("Content-Type", contentType)

	c, w := newAuthedContext(t, req)
	h.AnalyzeScan(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "not a cattle image")
}

func TestListScansEmptyHistory(t *testing.T) {
	h, _ := newScanHandlerSet(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	c, w := newAuthedContext(t, req)
	h.ListScans(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"scans":[]}`, w.Body.String())
}

func TestDeleteScanUnknownID(t *testing.T) {
	h, _ := newScanHandlerSet(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/scans/nope", nil)
	c, w := newAuthedContext(t, req)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.DeleteScan(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteScanRemovesRecord(t *testing.T) {
	h, store := newScanHandlerSet(t)

	body, contentType := multipartImage(t, "cow.jpg", []byte{0xff, 0xd8, 0xff, 0xe0})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/analyze", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newAuthedContext(t, req)
	h.AnalyzeScan(c)
	require.Equal(t, http.StatusOK, w.Code)

	var created string
	for id := range store.records {
		created = id
	}
	require.NotEmpty(t, created)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/scans/"+created, nil)
	c, w = newAuthedContext(t, req)
	c.Params = gin.Params{{Key: "id", Value: created}}
	h.DeleteScan(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.records)
}
