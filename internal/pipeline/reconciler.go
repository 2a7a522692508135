package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adforge/adforge-api/internal/gateway"
	"github.com/adforge/adforge-api/internal/record"
)

// The reconciler answers "what is the current status of record R". It only
// talks to the gateway for records that are non-terminal and already have a
// job handle; everything else is served straight from the store. A transient
// gateway failure never mutates stored state: the caller gets the last known
// status and is expected to poll again.

// RefreshPersona refreshes a persona record from the external service.
func (s *Service) RefreshPersona(ctx context.Context, id string) (*record.Persona, error) {
	p, err := s.repo.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() || p.OpenAIJobID == "" {
		return p, nil
	}

	res, err := s.gw.PollText(ctx, p.OpenAIJobID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			s.logger.Warn("poll failed, returning stored status",
				slog.String("persona_id", id),
				slog.String("error", err.Error()),
			)
			return p, nil
		}
		if ferr := s.repo.SetPersonaFailed(ctx, id, err.Error()); ferr != nil {
			return nil, ferr
		}
		return s.repo.GetPersona(ctx, id)
	}

	switch res.Status {
	case gateway.StatusCompleted:
		structured := structuredJSON(res.Text)
		if err := s.repo.SetPersonaCompleted(ctx, id, res.Text, structured); err != nil {
			return nil, err
		}
	case gateway.StatusFailed:
		if err := s.repo.SetPersonaFailed(ctx, id, res.Error); err != nil {
			return nil, err
		}
	default:
		if err := s.setNonTerminal(ctx, p.Status, res.Status, func(st record.Status) error {
			return s.repo.SetPersonaStatus(ctx, id, st)
		}); err != nil {
			return nil, err
		}
	}

	return s.repo.GetPersona(ctx, id)
}

// RefreshScript refreshes a script record from the external service.
func (s *Service) RefreshScript(ctx context.Context, id string) (*record.Script, error) {
	sc, err := s.repo.GetScript(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc.Status.IsTerminal() || sc.OpenAIJobID == "" {
		return sc, nil
	}

	res, err := s.gw.PollText(ctx, sc.OpenAIJobID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			s.logger.Warn("poll failed, returning stored status",
				slog.String("script_id", id),
				slog.String("error", err.Error()),
			)
			return sc, nil
		}
		if ferr := s.repo.SetScriptFailed(ctx, id, err.Error()); ferr != nil {
			return nil, ferr
		}
		return s.repo.GetScript(ctx, id)
	}

	switch res.Status {
	case gateway.StatusCompleted:
		if err := s.repo.SetScriptCompleted(ctx, id, res.Text); err != nil {
			return nil, err
		}
	case gateway.StatusFailed:
		if err := s.repo.SetScriptFailed(ctx, id, res.Error); err != nil {
			return nil, err
		}
	default:
		if err := s.setNonTerminal(ctx, sc.Status, res.Status, func(st record.Status) error {
			return s.repo.SetScriptStatus(ctx, id, st)
		}); err != nil {
			return nil, err
		}
	}

	return s.repo.GetScript(ctx, id)
}

// RefreshVideo refreshes a video record. On completion the rendered bytes are
// downloaded from the service, persisted under a fresh unique name, and the
// record gets its locator and public URL.
func (s *Service) RefreshVideo(ctx context.Context, id string) (*record.Video, error) {
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status.IsTerminal() || v.OpenAIJobID == "" {
		return v, nil
	}

	res, err := s.gw.PollVideo(ctx, v.OpenAIJobID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			s.logger.Warn("poll failed, returning stored status",
				slog.String("video_id", id),
				slog.String("error", err.Error()),
			)
			return v, nil
		}
		if ferr := s.repo.SetVideoFailed(ctx, id, err.Error()); ferr != nil {
			return nil, ferr
		}
		return s.repo.GetVideo(ctx, id)
	}

	switch res.Status {
	case gateway.StatusCompleted:
		if err := s.persistVideoArtifact(ctx, v); err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				s.logger.Warn("video download failed, returning stored status",
					slog.String("video_id", id),
					slog.String("error", err.Error()),
				)
				return v, nil
			}
			if ferr := s.repo.SetVideoFailed(ctx, id, err.Error()); ferr != nil {
				return nil, ferr
			}
		}
	case gateway.StatusFailed:
		if err := s.repo.SetVideoFailed(ctx, id, res.Error); err != nil {
			return nil, err
		}
	default:
		if err := s.setNonTerminal(ctx, v.Status, res.Status, func(st record.Status) error {
			return s.repo.SetVideoStatus(ctx, id, st)
		}); err != nil {
			return nil, err
		}
	}

	return s.repo.GetVideo(ctx, id)
}

// persistVideoArtifact downloads the rendered video and stores it durably
// under a new unique name.
func (s *Service) persistVideoArtifact(ctx context.Context, v *record.Video) error {
	data, err := s.gw.DownloadVideo(ctx, v.OpenAIJobID)
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}

	name := "videos/" + uuid.NewString() + ".mp4"
	locator, err := s.store.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store video: %w", err)
	}

	url := s.store.PublicURL(name)
	if err := s.repo.SetVideoCompleted(ctx, v.ID, locator, url); err != nil {
		return fmt.Errorf("persist video result: %w", err)
	}

	s.logger.Info("video artifact stored",
		slog.String("video_id", v.ID),
		slog.String("locator", locator),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// setNonTerminal persists a refreshed non-terminal status, skipping the write
// when nothing changed.
func (s *Service) setNonTerminal(ctx context.Context, current record.Status, polled gateway.Status, set func(record.Status) error) error {
	next := mapPollStatus(polled)
	if next == current {
		return nil
	}
	return set(next)
}

// structuredJSON returns the compacted JSON form of text when it parses as a
// JSON object, or the empty string when it does not. Completed text results
// always keep the raw text; the structured form is additional.
func structuredJSON(text string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return ""
	}
	return buf.String()
}
