// Package openai provides an HTTP client for the OpenAI Responses and Videos
// APIs. Text stages run as background responses; video stages run through the
// Sora video endpoint. Both are dispatched once and polled by job ID.
package openai

// Status represents the status of a background job on the OpenAI side.
type Status string

// Job statuses aligned with the OpenAI API.
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

// ResponseRequest contains the parameters for creating a background response.
type ResponseRequest struct {
	// Model is the text model to use (e.g. "gpt-5").
	Model string
	// Prompt is the full prompt text for this stage.
	Prompt string
	// ImageBase64 is an optional base64-encoded PNG or JPEG reference image.
	ImageBase64 string
	// ImageMIME is the MIME type of the reference image ("image/png" or
	// "image/jpeg"). Defaults to "image/png" when an image is present.
	ImageMIME string
}

// Response is the state of a background response job.
type Response struct {
	ID     string
	Status Status
	// OutputText is the concatenated assistant text, set when completed.
	OutputText string
	// Error is the failure message, set when failed.
	Error string
}

// VideoRequest contains the parameters for creating a video generation job.
type VideoRequest struct {
	// Model is the video model to use (e.g. "sora-2").
	Model string
	// Prompt is the video description, typically the generated ad script.
	Prompt string
	// ImageBytes is the reference image content.
	ImageBytes []byte
	// ImageName is the filename sent in the multipart form.
	ImageName string
	// Seconds is the clip length in seconds (API takes it as a string).
	Seconds string
	// Size is the output resolution, e.g. "720x1280".
	Size string
}

// Video is the state of a video generation job.
type Video struct {
	ID     string
	Status Status
	// Error is the failure message, set when failed.
	Error string
}

// createResponseRequest is the wire format for POST /responses.
type createResponseRequest struct {
	Model      string          `json:"model"`
	Background bool            `json:"background"`
	Input      []responseInput `json:"input"`
}

type responseInput struct {
	Role    string            `json:"role"`
	Content []responseContent `json:"content"`
}

type responseContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// responseEnvelope is the wire format returned by the responses endpoints.
type responseEnvelope struct {
	ID     string           `json:"id"`
	Status string           `json:"status"`
	Output []responseOutput `json:"output,omitempty"`
	Error  *apiError        `json:"error,omitempty"`
}

type responseOutput struct {
	Type    string            `json:"type"`
	Content []responseContent `json:"content,omitempty"`
}

// videoEnvelope is the wire format returned by the videos endpoints.
type videoEnvelope struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Error  *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}
