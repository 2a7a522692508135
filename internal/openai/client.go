package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for OpenAI client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("openai: OPENAI_API_KEY environment variable is not set")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("openai: job ID is required")
	// ErrNoJobIDReturned is returned when a create call returns no job ID.
	ErrNoJobIDReturned = errors.New("openai: create failed: no job ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("openai: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("openai: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("openai: request failed")
	// ErrPayloadTooLarge is returned when the server rejects the request body
	// with a 413 status code.
	ErrPayloadTooLarge = errors.New("openai: payload too large")
)

// Client defines the interface for interacting with the OpenAI API.
type Client interface {
	// CreateResponse dispatches a background text generation job.
	CreateResponse(ctx context.Context, req ResponseRequest) (Response, error)

	// GetResponse retrieves the current state of a background response.
	GetResponse(ctx context.Context, id string) (Response, error)

	// CreateVideo dispatches a video generation job.
	CreateVideo(ctx context.Context, req VideoRequest) (Video, error)

	// GetVideo retrieves the current state of a video generation job.
	GetVideo(ctx context.Context, id string) (Video, error)

	// DownloadVideoContent downloads the rendered video bytes for a
	// completed job.
	DownloadVideoContent(ctx context.Context, id string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the OpenAI Client interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the OpenAI API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new OpenAI HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable OPENAI_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://api.openai.com/v1",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// CreateResponse dispatches a background text generation job and returns its
// job ID and initial status.
func (c *HTTPClient) CreateResponse(ctx context.Context, req ResponseRequest) (Response, error) {
	content := []responseContent{
		{Type: "input_text", Text: req.Prompt},
	}
	if req.ImageBase64 != "" {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		content = append(content, responseContent{
			Type:     "input_image",
			ImageURL: fmt.Sprintf("data:%s;base64,%s", mime, req.ImageBase64),
		})
	}

	body := createResponseRequest{
		Model:      req.Model,
		Background: true,
		Input: []responseInput{
			{Role: "user", Content: content},
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	var env responseEnvelope
	if err := c.doJSONWithRetry(ctx, http.MethodPost, c.baseURL+"/responses", bodyBytes, &env); err != nil {
		return Response{}, err
	}
	if env.ID == "" {
		if env.Error != nil && env.Error.Message != "" {
			return Response{}, fmt.Errorf("%w: %s", ErrNoJobIDReturned, env.Error.Message)
		}
		return Response{}, ErrNoJobIDReturned
	}

	return mapResponse(env), nil
}

// GetResponse retrieves the current state of a background response.
func (c *HTTPClient) GetResponse(ctx context.Context, id string) (Response, error) {
	if id == "" {
		return Response{}, ErrJobIDRequired
	}

	var env responseEnvelope
	url := fmt.Sprintf("%s/responses/%s", c.baseURL, id)
	if err := c.doJSONWithRetry(ctx, http.MethodGet, url, nil, &env); err != nil {
		return Response{}, err
	}

	return mapResponse(env), nil
}

// CreateVideo dispatches a video generation job via multipart form upload.
func (c *HTTPClient) CreateVideo(ctx context.Context, req VideoRequest) (Video, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"model":   req.Model,
		"prompt":  req.Prompt,
		"seconds": req.Seconds,
		"size":    req.Size,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return Video{}, fmt.Errorf("openai: write form field %s: %w", k, err)
		}
	}

	if len(req.ImageBytes) > 0 {
		name := req.ImageName
		if name == "" {
			name = "reference.png"
		}
		fw, err := mw.CreateFormFile("input_reference", name)
		if err != nil {
			return Video{}, fmt.Errorf("openai: create form file: %w", err)
		}
		if _, err := fw.Write(req.ImageBytes); err != nil {
			return Video{}, fmt.Errorf("openai: write form file: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return Video{}, fmt.Errorf("openai: close multipart writer: %w", err)
	}

	var env videoEnvelope
	err := c.doRawWithRetry(ctx, http.MethodPost, c.baseURL+"/videos", buf.Bytes(), mw.FormDataContentType(), &env)
	if err != nil {
		return Video{}, err
	}
	if env.ID == "" {
		if env.Error != nil && env.Error.Message != "" {
			return Video{}, fmt.Errorf("%w: %s", ErrNoJobIDReturned, env.Error.Message)
		}
		return Video{}, ErrNoJobIDReturned
	}

	return mapVideo(env), nil
}

// GetVideo retrieves the current state of a video generation job.
func (c *HTTPClient) GetVideo(ctx context.Context, id string) (Video, error) {
	if id == "" {
		return Video{}, ErrJobIDRequired
	}

	var env videoEnvelope
	url := fmt.Sprintf("%s/videos/%s", c.baseURL, id)
	if err := c.doJSONWithRetry(ctx, http.MethodGet, url, nil, &env); err != nil {
		return Video{}, err
	}

	return mapVideo(env), nil
}

// DownloadVideoContent downloads the rendered video for a completed job.
// The response body is returned as raw bytes regardless of transfer encoding.
func (c *HTTPClient) DownloadVideoContent(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}

	url := fmt.Sprintf("%s/videos/%s/content", c.baseURL, id)

	var data []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("openai: create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retryableError{err: fmt.Errorf("openai: request failed: %w", err)}
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &retryableError{err: fmt.Errorf("openai: read response: %w", err)}
		}
		if err := checkStatus(resp.StatusCode, body); err != nil {
			return err
		}
		data = body
		return nil
	}

	if err := c.withRetry(ctx, op); err != nil {
		return nil, err
	}
	return data, nil
}

func mapResponse(env responseEnvelope) Response {
	r := Response{
		ID:     env.ID,
		Status: Status(env.Status),
	}
	switch r.Status {
	case StatusCompleted:
		var sb strings.Builder
		for _, out := range env.Output {
			if out.Type != "message" {
				continue
			}
			for _, c := range out.Content {
				if c.Type == "output_text" {
					sb.WriteString(c.Text)
				}
			}
		}
		r.OutputText = sb.String()
	case StatusFailed:
		if env.Error != nil {
			r.Error = env.Error.Message
		}
	}
	return r
}

func mapVideo(env videoEnvelope) Video {
	v := Video{
		ID:     env.ID,
		Status: Status(env.Status),
	}
	if v.Status == StatusFailed && env.Error != nil {
		v.Error = env.Error.Message
	}
	return v
}

// doJSONWithRetry performs a JSON request with exponential backoff retry.
func (c *HTTPClient) doJSONWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	return c.doRawWithRetry(ctx, method, url, body, "application/json", result)
}

func (c *HTTPClient) doRawWithRetry(ctx context.Context, method, url string, body []byte, contentType string, result any) error {
	return c.withRetry(ctx, func() error {
		return c.doRequest(ctx, method, url, body, contentType, result)
	})
}

// withRetry runs op with exponential backoff on retryable errors.
func (c *HTTPClient) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("openai: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("openai: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, contentType string, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("openai: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("openai: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("openai: read response: %w", err)}
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("openai: unmarshal response: %w", err)
		}
	}

	return nil
}

// checkStatus maps non-2xx status codes to errors. 5xx and 429 are retryable.
func checkStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	if code >= 500 {
		return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, code, string(body))}
	}
	if code == http.StatusTooManyRequests {
		return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(body))}
	}
	if code == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("%w: %s", ErrPayloadTooLarge, string(body))
	}
	return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, code, string(body))
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// IsTransient returns true if the error is a connectivity or server-side
// failure that says nothing about the state of the remote job.
func IsTransient(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
