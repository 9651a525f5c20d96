package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// URLSource is a free public generator addressed by query parameters. It
// renders asynchronously, so invalid bytes are retried with a fixed delay.
type URLSource struct {
	BaseURL string
	Width   int
	Height  int
	Seed    int
	Client  *http.Client

	// RetryDelay between attempts when the response fails the image
	// signature check. Attempts caps the total tries.
	RetryDelay time.Duration
	Attempts   uint64
}

// NewURLSource returns a source with the observed production settings:
// square render, 5 attempts, 5s between attempts.
func NewURLSource(baseURL string) *URLSource {
	return &URLSource{
		BaseURL:    baseURL,
		Width:      1024,
		Height:     1024,
		Seed:       42,
		Client:     NewClient(60 * time.Second),
		RetryDelay: 5 * time.Second,
		Attempts:   5,
	}
}

func (s *URLSource) renderURL(prompt string) string {
	q := url.Values{}
	q.Set("width", fmt.Sprint(s.Width))
	q.Set("height", fmt.Sprint(s.Height))
	q.Set("seed", fmt.Sprint(s.Seed))
	q.Set("nologo", "true")
	return fmt.Sprintf("%s/%s?%s", s.BaseURL, url.PathEscape(prompt), q.Encode())
}

// Generate fetches the rendered prompt, retrying on bytes that fail the
// magic-signature check, and returns a normalized PNG buffer.
func (s *URLSource) Generate(ctx context.Context, prompt string) ([]byte, error) {
	target := s.renderURL(prompt)

	var raw []byte
	attempt := 0
	op := func() error {
		attempt++
		buf, err := get(ctx, s.Client, target)
		if err != nil {
			return err
		}
		if !looksLikeImage(buf) {
			logrus.WithFields(logrus.Fields{
				"attempt": attempt,
				"bytes":   len(buf),
			}).Warn("generator returned non-image bytes, retrying")
			return ErrBadSignature
		}
		raw = buf
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.RetryDelay), s.Attempts-1)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// APISource is a paid prompt-to-image API: one synchronous call, one
// square image, no retry. Any API or fetch failure propagates as-is.
type APISource struct {
	Endpoint string
	APIKey   string
	Model    string
	Size     string
	Client   *http.Client
}

func NewAPISource(endpoint, apiKey string) *APISource {
	return &APISource{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    "image-alpha-001",
		Size:     "1024x1024",
		Client:   NewClient(120 * time.Second),
	}
}

type apiRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type apiResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the API once and returns a normalized PNG buffer.
func (s *APISource) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(apiRequest{
		Model:          s.Model,
		Prompt:         prompt,
		N:              1,
		Size:           s.Size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fetch: api response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("fetch: api error: %s", parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("fetch: api returned no images")
	}

	d := parsed.Data[0]
	if d.B64JSON != "" {
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("fetch: api image decode: %w", err)
		}
		return Normalize(raw)
	}
	raw, err := get(ctx, s.Client, d.URL)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}
