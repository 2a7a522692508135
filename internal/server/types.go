// Package server provides the HTTP layer for the AdForge API.
// It includes handlers, middleware, routes, and DTOs separated from the
// domain types. Stage creation endpoints answer 202: the job runs remotely
// and the client polls the matching status endpoint.
package server

import "encoding/json"

// UploadImageResponse is the HTTP response after uploading a product photo.
type UploadImageResponse struct {
	Success bool   `json:"success"`
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
}

// CreateProjectRequest is the HTTP request body for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// ProjectResponse is the HTTP response for project endpoints.
type ProjectResponse struct {
	Success     bool   `json:"success"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreatePersonaRequest is the HTTP request body for the persona stage.
type CreatePersonaRequest struct {
	ProjectID         string `json:"project_id" validate:"required,uuid4"`
	ImageID           string `json:"image_id" validate:"required,uuid4"`
	ProductName       string `json:"product_name" validate:"required,max=255"`
	Description       string `json:"description" validate:"required,max=4000"`
	PersonDescription string `json:"person_description" validate:"required,max=4000"`
}

// CreatePersonaResponse is the HTTP 202 response for the persona stage.
type CreatePersonaResponse struct {
	Success     bool   `json:"success"`
	PersonaID   string `json:"persona_id"`
	Status      string `json:"status"`
	OpenAIJobID string `json:"openai_job_id,omitempty"`
}

// PersonaStatusResponse is the HTTP response for persona status polls.
type PersonaStatusResponse struct {
	Success     bool            `json:"success"`
	PersonaID   string          `json:"persona_id"`
	Status      string          `json:"status"`
	PersonaJSON json.RawMessage `json:"persona_json,omitempty"`
	PersonaText string          `json:"persona_text,omitempty"`
	Error       string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// CreateScriptRequest is the HTTP request body for the script stage.
type CreateScriptRequest struct {
	PersonaID string `json:"persona_id" validate:"required,uuid4"`
	Tone      string `json:"tone" validate:"max=64"`
}

// CreateScriptResponse is the HTTP 202 response for the script stage.
type CreateScriptResponse struct {
	Success     bool   `json:"success"`
	ScriptID    string `json:"script_id"`
	Status      string `json:"status"`
	OpenAIJobID string `json:"openai_job_id,omitempty"`
}

// ScriptStatusResponse is the HTTP response for script status polls.
type ScriptStatusResponse struct {
	Success    bool   `json:"success"`
	ScriptID   string `json:"script_id"`
	Status     string `json:"status"`
	ScriptText string `json:"script_text,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CreateVideoRequest is the HTTP request body for the video stage.
type CreateVideoRequest struct {
	ScriptID string `json:"script_id" validate:"required,uuid4"`
}

// CreateVideoResponse is the HTTP 202 response for the video stage.
type CreateVideoResponse struct {
	Success     bool   `json:"success"`
	VideoID     string `json:"video_id"`
	Status      string `json:"status"`
	OpenAIJobID string `json:"openai_job_id,omitempty"`
}

// VideoStatusResponse is the HTTP response for video status polls.
type VideoStatusResponse struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
