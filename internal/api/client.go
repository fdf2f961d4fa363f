package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/smartreceipt/internal/receipt"
)

const (
	defaultTimeout = 30 * time.Second
	// upload includes the backend's AI extraction
	uploadTimeout = 60 * time.Second
)

// Client talks to the receipt backend's HTTP API
type Client struct {
	baseURL       string
	client        *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeouts overrides the per-request and upload timeouts
func WithTimeouts(request, upload time.Duration) Option {
	return func(c *Client) {
		c.timeout = request
		c.uploadTimeout = upload
	}
}

// NewClient creates a Client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{},
		timeout:       defaultTimeout,
		uploadTimeout: uploadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DeleteResult is the backend's confirmation of a deletion
type DeleteResult struct {
	Message string `json:"message"`
}

// HealthStatus is the backend's health payload
type HealthStatus map[string]any

// Status returns the "status" field of the payload, if any
func (h HealthStatus) Status() string {
	s, _ := h["status"].(string)
	return s
}

// Upload validates u and sends it to the backend for extraction
func (c *Client) Upload(ctx context.Context, u Upload) (*receipt.Receipt, error) {
	if err := ValidateUpload(u); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(u.Filename)))
	header.Set("Content-Type", normalizeContentType(u.ContentType))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, u.Body); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	slog.Debug("Uploading receipt", "filename", u.Filename, "size_kb", fmt.Sprintf("%.2f", float64(u.Size)/1024))

	var created receipt.Receipt
	err = c.do(ctx, c.uploadTimeout, http.MethodPost, "/upload", &body, mw.FormDataContentType(), &created)
	if err != nil {
		return nil, fmt.Errorf("uploading receipt: %w", err)
	}
	return &created, nil
}

// ListReceipts fetches receipts, scoped to category unless it is
// receipt.AllCategories.
func (c *Client) ListReceipts(ctx context.Context, category receipt.Category) ([]receipt.Receipt, error) {
	path := "/receipts"
	if category != receipt.AllCategories {
		path += "?" + url.Values{"category": {string(category)}}.Encode()
	}

	receipts := make([]receipt.Receipt, 0)
	if err := c.do(ctx, c.timeout, http.MethodGet, path, nil, "", &receipts); err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	slog.Debug("Fetched receipts", "count", len(receipts), "category", category)
	return receipts, nil
}

// GetReceipt fetches a single receipt
func (c *Client) GetReceipt(ctx context.Context, id receipt.ID) (*receipt.Receipt, error) {
	var r receipt.Receipt
	if err := c.do(ctx, c.timeout, http.MethodGet, "/receipts/"+url.PathEscape(id.String()), nil, "", &r); err != nil {
		return nil, fmt.Errorf("getting receipt %s: %w", id, err)
	}
	return &r, nil
}

// DeleteReceipt removes a receipt
func (c *Client) DeleteReceipt(ctx context.Context, id receipt.ID) (*DeleteResult, error) {
	var res DeleteResult
	if err := c.do(ctx, c.timeout, http.MethodDelete, "/receipts/"+url.PathEscape(id.String()), nil, "", &res); err != nil {
		return nil, fmt.Errorf("deleting receipt %s: %w", id, err)
	}
	return &res, nil
}

// Analytics fetches the backend's precomputed summary
func (c *Client) Analytics(ctx context.Context) (*receipt.Summary, error) {
	var s receipt.Summary
	if err := c.do(ctx, c.timeout, http.MethodGet, "/analytics", nil, "", &s); err != nil {
		return nil, fmt.Errorf("getting analytics: %w", err)
	}
	slog.Debug("Fetched analytics", "total_receipts", s.TotalReceipts, "categories", len(s.ByCategory))
	return &s, nil
}

// Categories fetches the category values the backend knows about
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var res struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, c.timeout, http.MethodGet, "/categories", nil, "", &res); err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}
	return res.Categories, nil
}

// Health calls the backend's health endpoint
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	status := HealthStatus{}
	if err := c.do(ctx, c.timeout, http.MethodGet, "/health", nil, "", &status); err != nil {
		return nil, fmt.Errorf("checking health: %w", err)
	}
	return status, nil
}

// do sends one request and decodes a JSON response into out.
// Transport failures become *NetworkError, error statuses *ServerError.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body io.Reader, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("API request failed", "method", method, "path", path, "error", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("API response", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &ServerError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorDetail extracts a server-supplied message from an error body.
// FastAPI-style {"detail": "..."} wins over {"message": "..."}.
func errorDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
		return detail
	}
	return payload.Message
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
