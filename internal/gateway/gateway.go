// Package gateway adapts the OpenAI client to the job gateway used by the
// pipeline. It owns prompt dispatch, status polling, result download and
// reference image normalization; the rest of the service never talks to the
// external API directly.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/adforge/adforge-api/internal/openai"
)

// Static errors for gateway operations.
var (
	// ErrUnavailable indicates a connectivity or server-side failure that
	// says nothing about the state of the remote job. Callers must not treat
	// it as a job failure.
	ErrUnavailable = errors.New("gateway: service unavailable")
	// ErrInvalidInput indicates the reference image could not be decoded or
	// encoded for dispatch.
	ErrInvalidInput = errors.New("gateway: invalid reference image")
	// ErrPayloadTooLarge indicates the reference image exceeds the size the
	// video service accepts.
	ErrPayloadTooLarge = errors.New("gateway: reference image too large")
)

// Status represents the remote job status as reported by the service.
type Status string

// Statuses reported by the external service.
const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TextOptions contains per-dispatch parameters for text stages.
type TextOptions struct {
	// Model overrides the default text model when set.
	Model string
}

// TextResult is the outcome of polling a text job.
type TextResult struct {
	Status Status
	// Text is the raw output, set when Status is StatusCompleted.
	Text string
	// Error is the failure message, set when Status is StatusFailed.
	Error string
}

// VideoResult is the outcome of polling a video job.
type VideoResult struct {
	Status Status
	// Error is the failure message, set when Status is StatusFailed.
	Error string
}

// Gateway defines the boundary to the external generative service.
// Dispatch calls return quickly because the service runs jobs in the
// background; completion is observed via the poll calls.
type Gateway interface {
	// DispatchText starts a background text generation job. The reference
	// image may be nil for text-only prompts.
	DispatchText(ctx context.Context, prompt string, image []byte, opts TextOptions) (jobID string, status Status, err error)

	// DispatchVideo starts a video generation job from a prompt and a
	// reference image.
	DispatchVideo(ctx context.Context, prompt string, image []byte) (jobID string, status Status, err error)

	// PollText returns the current status of a text job and, once completed,
	// its output text.
	PollText(ctx context.Context, jobID string) (TextResult, error)

	// PollVideo returns the current status of a video job.
	PollVideo(ctx context.Context, jobID string) (VideoResult, error)

	// DownloadVideo fetches the rendered video bytes for a completed job.
	DownloadVideo(ctx context.Context, jobID string) ([]byte, error)
}

// Config holds the models and video parameters used for dispatch.
type Config struct {
	// TextModel is the default model for persona and script generation.
	TextModel string
	// VideoModel is the model for video generation.
	VideoModel string
	// VideoSeconds is the clip length passed to the video API.
	VideoSeconds string
	// VideoSize is the output resolution passed to the video API.
	VideoSize string
	// MaxImageBytes caps the reference image size for video dispatch.
	// Zero means DefaultMaxImageBytes.
	MaxImageBytes int
}

// DefaultMaxImageBytes is the reference image cap applied when Config does
// not set one.
const DefaultMaxImageBytes = 16 << 20

// OpenAIGateway implements Gateway on top of the OpenAI client.
type OpenAIGateway struct {
	client openai.Client
	cfg    Config
}

// Compile-time check that OpenAIGateway implements Gateway.
var _ Gateway = (*OpenAIGateway)(nil)

// NewOpenAIGateway creates a gateway backed by the given OpenAI client.
func NewOpenAIGateway(client openai.Client, cfg Config) *OpenAIGateway {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	return &OpenAIGateway{client: client, cfg: cfg}
}

// DispatchText starts a background text generation job.
func (g *OpenAIGateway) DispatchText(ctx context.Context, prompt string, image []byte, opts TextOptions) (string, Status, error) {
	req := openai.ResponseRequest{
		Model:  g.cfg.TextModel,
		Prompt: prompt,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}

	if len(image) > 0 {
		normalized, mime, err := NormalizeImage(image)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		req.ImageBase64 = base64.StdEncoding.EncodeToString(normalized)
		req.ImageMIME = mime
	}

	resp, err := g.client.CreateResponse(ctx, req)
	if err != nil {
		return "", "", g.mapError(err)
	}
	return resp.ID, mapStatus(resp.Status), nil
}

// DispatchVideo starts a video generation job.
func (g *OpenAIGateway) DispatchVideo(ctx context.Context, prompt string, image []byte) (string, Status, error) {
	if len(image) > g.cfg.MaxImageBytes {
		return "", "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, len(image), g.cfg.MaxImageBytes)
	}

	normalized, mime, err := NormalizeImage(image)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	name := "reference.png"
	if mime == "image/jpeg" {
		name = "reference.jpg"
	}

	video, err := g.client.CreateVideo(ctx, openai.VideoRequest{
		Model:      g.cfg.VideoModel,
		Prompt:     prompt,
		ImageBytes: normalized,
		ImageName:  name,
		Seconds:    g.cfg.VideoSeconds,
		Size:       g.cfg.VideoSize,
	})
	if err != nil {
		if errors.Is(err, openai.ErrPayloadTooLarge) {
			return "", "", fmt.Errorf("%w: %s", ErrPayloadTooLarge, err)
		}
		return "", "", g.mapError(err)
	}
	return video.ID, mapStatus(video.Status), nil
}

// PollText returns the current status of a text job.
func (g *OpenAIGateway) PollText(ctx context.Context, jobID string) (TextResult, error) {
	resp, err := g.client.GetResponse(ctx, jobID)
	if err != nil {
		return TextResult{}, g.mapError(err)
	}
	return TextResult{
		Status: mapStatus(resp.Status),
		Text:   resp.OutputText,
		Error:  resp.Error,
	}, nil
}

// PollVideo returns the current status of a video job.
func (g *OpenAIGateway) PollVideo(ctx context.Context, jobID string) (VideoResult, error) {
	video, err := g.client.GetVideo(ctx, jobID)
	if err != nil {
		return VideoResult{}, g.mapError(err)
	}
	return VideoResult{
		Status: mapStatus(video.Status),
		Error:  video.Error,
	}, nil
}

// DownloadVideo fetches the rendered video bytes for a completed job.
func (g *OpenAIGateway) DownloadVideo(ctx context.Context, jobID string) ([]byte, error) {
	data, err := g.client.DownloadVideoContent(ctx, jobID)
	if err != nil {
		return nil, g.mapError(err)
	}
	return data, nil
}

// mapError tags transient client failures as ErrUnavailable so callers can
// tell a flaky network apart from a failed job.
func (g *OpenAIGateway) mapError(err error) error {
	if openai.IsTransient(err) {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return err
}

func mapStatus(s openai.Status) Status {
	switch s {
	case openai.StatusQueued:
		return StatusQueued
	case openai.StatusInProgress:
		return StatusInProgress
	case openai.StatusCompleted:
		return StatusCompleted
	case openai.StatusFailed:
		return StatusFailed
	default:
		return Status(s)
	}
}
