// Package fetch retrieves a raster image for a prompt from an external
// generator and normalizes it for quantization.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"
)

const maxRedirects = 5

// ErrRedirectLoop is returned when the generator's redirect chain exceeds
// the hop limit.
var ErrRedirectLoop = errors.New("fetch: redirect loop")

// ErrBadSignature is returned when fetched bytes are not a JPEG or PNG
// after all retry attempts.
var ErrBadSignature = errors.New("fetch: response is not a JPEG or PNG image")

// HTTPError is a terminal non-2xx response from the upstream generator.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: upstream HTTP error %d", e.Status)
}

// Source produces a normalized PNG buffer for a prompt.
type Source interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// NewClient returns an HTTP client that follows at most maxRedirects hops
// and fails with ErrRedirectLoop beyond that.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrRedirectLoop
			}
			return nil
		},
	}
}

// get fetches url and returns the terminal body. A non-2xx terminal
// status becomes an *HTTPError.
func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrRedirectLoop) {
			return nil, ErrRedirectLoop
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// looksLikeImage checks JPEG/PNG magic bytes. Generators that render
// asynchronously sometimes return placeholder HTML with status 200.
func looksLikeImage(buf []byte) bool {
	if len(buf) >= 8 && bytes.Equal(buf[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}) {
		return true
	}
	if len(buf) >= 3 && buf[0] == 0xff && buf[1] == 0xd8 && buf[2] == 0xff {
		return true
	}
	return false
}

// Normalize decodes any supported source encoding and re-encodes to PNG
// so downstream stages never branch on encoding.
func Normalize(buf []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("fetch: decode: %w", err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("fetch: encode: %w", err)
	}
	return out.Bytes(), nil
}

// Decode parses a normalized buffer back into an image.
func Decode(buf []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	return img, err
}
