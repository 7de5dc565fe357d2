package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"farmlens/api/internal/config"
)

// Prediction is one ranked breed guess from the external endpoint.
type Prediction struct {
	Breed string  `json:"breed"`
	Score float64 `json:"score"`
}

// Result is the ordered guess list, ranked descending by score. It is
// transient; callers persist only the top entry.
type Result struct {
	Predictions []Prediction `json:"predictions"`
}

// Top returns the highest-ranked guess.
func (r Result) Top() Prediction {
	return r.Predictions[0]
}

// EndpointError carries the reason reported by the prediction endpoint on a
// non-2xx response.
type EndpointError struct {
	StatusCode int
	Reason     string
}

func (e *EndpointError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("prediction endpoint: %s (status %d)", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("prediction endpoint returned status %d", e.StatusCode)
}

var ErrEmptyResult = errors.New("prediction endpoint returned no predictions")

// Client calls the external breed prediction endpoint. Calls are synchronous
// and never retried; the workflow surfaces failures directly to the user.
type Client struct {
	httpClient *http.Client
	cfg        config.PredictConfig
	log        zerolog.Logger
}

func NewClient(cfg config.PredictConfig, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log,
	}
}

type predictRequest struct {
	ImageURL string `json:"image_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Predict submits a public image reference and returns the ranked guesses.
func (c *Client) Predict(ctx context.Context, imageURL string) (Result, error) {
	body, err := json.Marshal(predictRequest{ImageURL: imageURL})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call prediction endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		endpointErr := &EndpointError{StatusCode: resp.StatusCode}
		var errBody errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			endpointErr.Reason = errBody.Error
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("reason", endpointErr.Reason).Msg("prediction endpoint rejected request")
		return Result{}, endpointErr
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Predictions) == 0 {
		return Result{}, ErrEmptyResult
	}

	return result, nil
}
