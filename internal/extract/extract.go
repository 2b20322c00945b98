// Package extract adapts the external document-extraction collaborators
// behind one narrow interface: raw bytes plus a declared media type in,
// plain text out. PDFs are parsed in-process; image OCR is delegated to an
// external HTTP service.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedMedia is returned for media types that are neither
// application/pdf nor image/*.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Service dispatches by media type: PDF parsing in-process, OCR over HTTP.
// An empty OCR endpoint disables image support.
type Service struct {
	ocrEndpoint string
	httpClient  *http.Client
}

// NewService constructs a Service. ocrEndpoint may be empty when image
// uploads are not offered.
func NewService(ocrEndpoint string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		ocrEndpoint: ocrEndpoint,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Extract implements Extractor.
func (s *Service) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mt == "application/pdf":
		return pdfText(data)
	case strings.HasPrefix(mt, "image/"):
		return s.ocrText(ctx, data, mt)
	default:
		return "", ErrUnsupportedMedia
	}
}

// pdfText extracts plain text from a PDF byte slice. An empty result with a
// nil error means the PDF carried no extractable text.
func pdfText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}

// ocrText posts image bytes to the OCR collaborator and returns the
// recognized text.
func (s *Service) ocrText(ctx context.Context, data []byte, mediaType string) (string, error) {
	if s.ocrEndpoint == "" {
		return "", fmt.Errorf("%w: image uploads require an OCR endpoint", ErrUnsupportedMedia)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ocrEndpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build ocr request failed: %w", err)
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ocr response status %d: %s", resp.StatusCode, string(raw))
	}
	return string(raw), nil
}
