package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adforge/adforge-api/internal/gateway"
	"github.com/adforge/adforge-api/internal/prompt"
	"github.com/adforge/adforge-api/internal/record"
)

// CreatePersonaInput contains the inputs for the persona stage.
type CreatePersonaInput struct {
	ProjectID          string
	ImageID            string
	ProductName        string
	ProductDescription string
	PersonDescription  string
}

// CreatePersona creates a persona record and dispatches its generation job.
// Referenced records are checked before anything is persisted, so a bad
// reference never leaves a record behind. On dispatch failure the record is
// persisted as failed and ErrDispatchFailed is returned alongside it.
func (s *Service) CreatePersona(ctx context.Context, in CreatePersonaInput) (*record.Persona, error) {
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return nil, fmt.Errorf("project %s: %w", in.ProjectID, err)
	}
	img, err := s.repo.GetImage(ctx, in.ImageID)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", in.ImageID, err)
	}

	p := &record.Persona{
		ProjectID:         in.ProjectID,
		ImageID:           in.ImageID,
		ProductName:       in.ProductName,
		Description:       in.ProductDescription,
		PersonDescription: in.PersonDescription,
		Status:            record.StatusProcessing,
	}
	if err := s.repo.CreatePersona(ctx, p); err != nil {
		return nil, fmt.Errorf("create persona record: %w", err)
	}

	stagePrompt, err := s.templates.RenderPersona(prompt.PersonaParams{
		ProductName:        in.ProductName,
		ProductDescription: in.ProductDescription,
		PersonDescription:  in.PersonDescription,
	})
	if err != nil {
		return s.failPersona(ctx, p, err)
	}

	imageBytes, err := s.loadImageBytes(ctx, img)
	if err != nil {
		return s.failPersona(ctx, p, err)
	}

	jobID, status, err := s.gw.DispatchText(ctx, stagePrompt, imageBytes, gateway.TextOptions{})
	if err != nil {
		return s.failPersona(ctx, p, err)
	}

	if err := s.repo.SetPersonaDispatched(ctx, p.ID, jobID, mapDispatchStatus(status)); err != nil {
		return s.failPersona(ctx, p, fmt.Errorf("store job handle: %w", err))
	}

	s.logger.Info("persona dispatched",
		slog.String("persona_id", p.ID),
		slog.String("openai_job_id", jobID),
		slog.String("status", string(status)),
	)

	return s.repo.GetPersona(ctx, p.ID)
}

// CreateScriptInput contains the inputs for the script stage.
type CreateScriptInput struct {
	PersonaID string
	Tone      string
}

// CreateScript creates a script record from a completed persona and
// dispatches its generation job.
func (s *Service) CreateScript(ctx context.Context, in CreateScriptInput) (*record.Script, error) {
	persona, err := s.repo.GetPersona(ctx, in.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", in.PersonaID, err)
	}
	if err := requireCompleted(persona.Status); err != nil {
		return nil, err
	}
	img, err := s.repo.GetImage(ctx, persona.ImageID)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", persona.ImageID, err)
	}

	sc := &record.Script{
		PersonaID: in.PersonaID,
		Tone:      in.Tone,
		Status:    record.StatusProcessing,
	}
	if err := s.repo.CreateScript(ctx, sc); err != nil {
		return nil, fmt.Errorf("create script record: %w", err)
	}

	personaText := persona.PersonaJSON
	if personaText == "" {
		personaText = persona.PersonaText
	}

	stagePrompt, err := s.templates.RenderScript(prompt.ScriptParams{
		ProductName:        persona.ProductName,
		ProductDescription: persona.Description,
		Persona:            personaText,
		Tone:               in.Tone,
	})
	if err != nil {
		return s.failScript(ctx, sc, err)
	}

	imageBytes, err := s.loadImageBytes(ctx, img)
	if err != nil {
		return s.failScript(ctx, sc, err)
	}

	jobID, status, err := s.gw.DispatchText(ctx, stagePrompt, imageBytes, gateway.TextOptions{})
	if err != nil {
		return s.failScript(ctx, sc, err)
	}

	if err := s.repo.SetScriptDispatched(ctx, sc.ID, jobID, mapDispatchStatus(status)); err != nil {
		return s.failScript(ctx, sc, fmt.Errorf("store job handle: %w", err))
	}

	s.logger.Info("script dispatched",
		slog.String("script_id", sc.ID),
		slog.String("persona_id", in.PersonaID),
		slog.String("openai_job_id", jobID),
		slog.String("status", string(status)),
	)

	return s.repo.GetScript(ctx, sc.ID)
}

// CreateVideoInput contains the inputs for the video stage.
type CreateVideoInput struct {
	ScriptID string
}

// CreateVideo creates a video record from a completed script and dispatches
// its rendering job. The script text is the prompt; no further templating.
func (s *Service) CreateVideo(ctx context.Context, in CreateVideoInput) (*record.Video, error) {
	script, err := s.repo.GetScript(ctx, in.ScriptID)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", in.ScriptID, err)
	}
	if err := requireCompleted(script.Status); err != nil {
		return nil, err
	}
	persona, err := s.repo.GetPersona(ctx, script.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", script.PersonaID, err)
	}
	img, err := s.repo.GetImage(ctx, persona.ImageID)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", persona.ImageID, err)
	}

	v := &record.Video{
		ScriptID: in.ScriptID,
		Status:   record.StatusProcessing,
	}
	if err := s.repo.CreateVideo(ctx, v); err != nil {
		return nil, fmt.Errorf("create video record: %w", err)
	}

	imageBytes, err := s.loadImageBytes(ctx, img)
	if err != nil {
		return s.failVideo(ctx, v, err)
	}

	jobID, status, err := s.gw.DispatchVideo(ctx, script.ScriptText, imageBytes)
	if err != nil {
		return s.failVideo(ctx, v, err)
	}

	if err := s.repo.SetVideoDispatched(ctx, v.ID, jobID, mapDispatchStatus(status)); err != nil {
		return s.failVideo(ctx, v, fmt.Errorf("store job handle: %w", err))
	}

	s.logger.Info("video dispatched",
		slog.String("video_id", v.ID),
		slog.String("script_id", in.ScriptID),
		slog.String("openai_job_id", jobID),
		slog.String("status", string(status)),
	)

	return s.repo.GetVideo(ctx, v.ID)
}

// requireCompleted guards stage chaining: the prior stage must have a result.
func requireCompleted(status record.Status) error {
	switch status {
	case record.StatusCompleted:
		return nil
	case record.StatusFailed:
		return ErrStageFailed
	default:
		return ErrStageNotReady
	}
}

// failPersona marks the record failed after a dispatch-path error. The record
// is never left in processing with no handle.
func (s *Service) failPersona(ctx context.Context, p *record.Persona, cause error) (*record.Persona, error) {
	if err := s.repo.SetPersonaFailed(ctx, p.ID, cause.Error()); err != nil {
		s.logger.Error("failed to mark persona failed",
			slog.String("persona_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	if got, err := s.repo.GetPersona(ctx, p.ID); err == nil {
		p = got
	}
	return p, fmt.Errorf("%w: %s", ErrDispatchFailed, cause)
}

func (s *Service) failScript(ctx context.Context, sc *record.Script, cause error) (*record.Script, error) {
	if err := s.repo.SetScriptFailed(ctx, sc.ID, cause.Error()); err != nil {
		s.logger.Error("failed to mark script failed",
			slog.String("script_id", sc.ID),
			slog.String("error", err.Error()),
		)
	}
	if got, err := s.repo.GetScript(ctx, sc.ID); err == nil {
		sc = got
	}
	return sc, fmt.Errorf("%w: %s", ErrDispatchFailed, cause)
}

func (s *Service) failVideo(ctx context.Context, v *record.Video, cause error) (*record.Video, error) {
	if err := s.repo.SetVideoFailed(ctx, v.ID, cause.Error()); err != nil {
		s.logger.Error("failed to mark video failed",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	if got, err := s.repo.GetVideo(ctx, v.ID); err == nil {
		v = got
	}
	return v, fmt.Errorf("%w: %s", ErrDispatchFailed, cause)
}
