// Package pipeline implements the three-stage ad generation pipeline:
// persona, script, video. Each stage is one externally dispatched job tracked
// by a durable record. Stage creation dispatches the job inside the request
// (the external dispatch call itself is fast); completion is observed only
// through client-driven status polls handled by the reconciler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/adforge/adforge-api/internal/gateway"
	"github.com/adforge/adforge-api/internal/prompt"
	"github.com/adforge/adforge-api/internal/record"
	"github.com/adforge/adforge-api/internal/storage"
)

// Static errors for pipeline operations.
var (
	// ErrStageNotReady is returned when a stage is created from a prior
	// stage record that has not completed yet.
	ErrStageNotReady = errors.New("pipeline: prior stage is not completed")
	// ErrStageFailed is returned when a stage is created from a prior stage
	// record that failed.
	ErrStageFailed = errors.New("pipeline: prior stage failed")
	// ErrDispatchFailed is returned when the external dispatch call failed.
	// The stage record has already been marked failed when this is returned.
	ErrDispatchFailed = errors.New("pipeline: external dispatch failed")
)

// Service orchestrates stage dispatch and reconciles record status against
// the external service.
type Service struct {
	repo      record.Repository
	gw        gateway.Gateway
	store     storage.Storage
	templates *prompt.Templates
	logger    *slog.Logger
}

// NewService creates a pipeline service.
func NewService(repo record.Repository, gw gateway.Gateway, store storage.Storage, templates *prompt.Templates, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		gw:        gw,
		store:     store,
		templates: templates,
		logger:    logger,
	}
}

// loadImageBytes reads the stored bytes of an uploaded image.
func (s *Service) loadImageBytes(ctx context.Context, img *record.Image) ([]byte, error) {
	rc, err := s.store.Load(ctx, img.FilePath)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", img.ID, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", img.ID, err)
	}
	return data, nil
}

// mapDispatchStatus converts the gateway's initial report into a record
// status. Anything that is not explicitly queued counts as processing.
func mapDispatchStatus(s gateway.Status) record.Status {
	if s == gateway.StatusQueued {
		return record.StatusQueued
	}
	return record.StatusProcessing
}

// mapPollStatus converts a non-terminal gateway status into a record status.
func mapPollStatus(s gateway.Status) record.Status {
	if s == gateway.StatusQueued {
		return record.StatusQueued
	}
	return record.StatusProcessing
}
