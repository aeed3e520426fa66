package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"spotwise-backend/config"
)

// Client talks to the external detection service. Both endpoints take a
// multipart form with a single "image" field.
type Client struct {
	detectURL    string
	visualizeURL string
	client       *http.Client
}

// NewClient creates a detection client from configuration.
func NewClient(cfg config.DetectionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		detectURL:    cfg.DetectURL,
		visualizeURL: cfg.VisualizeURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// Detect submits img to the detect-and-replace endpoint.
func (c *Client) Detect(ctx context.Context, img Image) (Result, error) {
	body, err := c.post(ctx, c.detectURL, img)
	if err != nil {
		return nil, err
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection response: %w", err)
	}
	return res, nil
}

// Visualize submits img to the detect-and-visualize endpoint and returns the
// annotated image as base64-encoded PNG.
func (c *Client) Visualize(ctx context.Context, img Image) (*VisualizeResponse, error) {
	body, err := c.post(ctx, c.visualizeURL, img)
	if err != nil {
		return nil, err
	}

	var res VisualizeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal visualize response: %w", err)
	}
	if res.Image == "" {
		return nil, ErrNoImage
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, url string, img Image) ([]byte, error) {
	payload, contentType, err := encodeForm(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}
	return body, nil
}

func encodeForm(img Image) (*bytes.Buffer, string, error) {
	filename := img.Filename
	if filename == "" {
		filename = "frame.jpg"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// errorDetail pulls the message out of a {"detail": "..."} body.
func errorDetail(body []byte) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Detail == nil {
		return ""
	}
	if s, ok := e.Detail.(string); ok {
		return s
	}
	b, _ := json.Marshal(e.Detail)
	return string(b)
}
