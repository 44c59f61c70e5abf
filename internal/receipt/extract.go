package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	EngineText = "text"
	EngineHTTP = "http"
)

// ExtractorConfig selects and configures a TextExtractor.
type ExtractorConfig struct {
	Engine string

	// URL is the remote OCR endpoint used by the http engine.
	URL     string
	Timeout time.Duration
}

// NewTextExtractor returns the extractor for cfg.Engine.
func NewTextExtractor(cfg ExtractorConfig) (TextExtractor, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", EngineText:
		return TextEngine{}, nil
	case EngineHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%s engine needs an endpoint URL", EngineHTTP)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		return &HTTPEngine{url: cfg.URL, client: &http.Client{Timeout: timeout}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

// TextEngine treats the upload as already-extracted text, e.g. a pasted
// receipt or a text export from a delivery app.
type TextEngine struct{}

func (TextEngine) Extract(_ context.Context, image Image) (OCRResult, error) {
	if !utf8.Valid(image.Data) {
		return OCRResult{}, fmt.Errorf("%s engine accepts UTF-8 text only", EngineText)
	}
	text := strings.TrimSpace(string(image.Data))
	if text == "" {
		return OCRResult{}, ErrNoText
	}
	return OCRResult{RawText: text, Confidence: 1, Engine: EngineText}, nil
}

// HTTPEngine posts the prepared image to a remote OCR service as multipart
// form field "file" and expects {"raw_text": ..., "confidence": ...} back.
type HTTPEngine struct {
	url    string
	client *http.Client
}

func (e *HTTPEngine) Extract(ctx context.Context, image Image) (OCRResult, error) {
	prepared, err := Prepare(image)
	if err != nil {
		return OCRResult{}, err
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", prepared.Filename)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to build OCR request: %w", err)
	}
	if _, err := part.Write(prepared.Data); err != nil {
		return OCRResult{}, fmt.Errorf("failed to build OCR request: %w", err)
	}
	if err := form.Close(); err != nil {
		return OCRResult{}, fmt.Errorf("failed to build OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, body)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return OCRResult{}, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return OCRResult{}, fmt.Errorf("OCR service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OCRResult{}, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	result.RawText = strings.TrimSpace(result.RawText)
	if result.RawText == "" {
		return OCRResult{}, ErrNoText
	}
	if result.Engine == "" {
		result.Engine = EngineHTTP
	}
	return result, nil
}
