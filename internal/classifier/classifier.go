// Package classifier wraps the external document classification collaborator.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/shopspring/decimal"
)

// Result is the classifier's verdict on one document.
type Result struct {
	// Confidence is the classifier's confidence that the document matches its
	// declared type, in [0, 1].
	Confidence decimal.Decimal `json:"confidence"`
	// DetectedType is the type the classifier believes the document to be.
	DetectedType string `json:"detected_type"`
	// ExtractedFields holds structured data pulled from the document.
	ExtractedFields domain.Metadata `json:"extracted_fields"`
}

// Classifier scores a document against its declared type. Failures map to
// the collaborator error sentinels; the pipeline never retries on its own.
type Classifier interface {
	Classify(ctx context.Context, content []byte, mimeType string, declaredType domain.DocumentType) (*Result, error)
}

// HTTPClassifier calls a document classification service over HTTP.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewHTTPClassifier(baseURL string, timeout time.Duration, log logger.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, content []byte, mimeType string, declaredType domain.DocumentType) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/classify?declared_type=%s", c.baseURL, url.QueryEscape(string(declaredType)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build classifier request")
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrCollaboratorTimeout
		}
		// Client-side timeouts surface as url.Error with Timeout() true.
		if ue, ok := err.(*url.Error); ok && ue.Timeout() {
			return nil, errors.ErrCollaboratorTimeout
		}
		return nil, errors.ErrCollaboratorUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.logger.Warn("Classifier returned server error", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, errors.ErrCollaboratorUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier rejected request with status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode classifier response")
	}
	return &result, nil
}
