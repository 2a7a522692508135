package record

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record cannot be found by ID.
var ErrNotFound = errors.New("record not found")

// ErrTerminal is returned when an update targets a record that already
// reached a terminal state. Terminal records are immutable.
var ErrTerminal = errors.New("record is in a terminal state")

// ErrAlreadyDispatched is returned when a dispatch tries to overwrite an
// existing external job handle. A stage is never re-dispatched under the same
// record; retrying requires a new record.
var ErrAlreadyDispatched = errors.New("record already has an external job handle")

// Repository defines the persistence port for pipeline records.
//
// The dispatch and refresh paths mutate one row at a time; implementations
// must provide at least per-row atomicity so that concurrent polls on the
// same record cannot interleave partial updates.
type Repository interface {
	// GetOrCreateUser returns the user with the given ID, creating it with
	// zero credits if it does not exist yet.
	GetOrCreateUser(ctx context.Context, id string) (*User, error)

	CreateImage(ctx context.Context, img *Image) error
	GetImage(ctx context.Context, id string) (*Image, error)
	// DeleteImage removes the image row and cascades to dependent personas,
	// scripts and videos.
	DeleteImage(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)

	CreatePersona(ctx context.Context, p *Persona) error
	GetPersona(ctx context.Context, id string) (*Persona, error)
	// SetPersonaDispatched stores the external job handle and the initial
	// status reported by the gateway. The handle is written once and never
	// overwritten.
	SetPersonaDispatched(ctx context.Context, id, jobID string, status Status) error
	SetPersonaStatus(ctx context.Context, id string, status Status) error
	SetPersonaCompleted(ctx context.Context, id, personaText, personaJSON string) error
	SetPersonaFailed(ctx context.Context, id, errMsg string) error

	CreateScript(ctx context.Context, s *Script) error
	GetScript(ctx context.Context, id string) (*Script, error)
	SetScriptDispatched(ctx context.Context, id, jobID string, status Status) error
	SetScriptStatus(ctx context.Context, id string, status Status) error
	SetScriptCompleted(ctx context.Context, id, scriptText string) error
	SetScriptFailed(ctx context.Context, id, errMsg string) error

	CreateVideo(ctx context.Context, v *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	SetVideoDispatched(ctx context.Context, id, jobID string, status Status) error
	SetVideoStatus(ctx context.Context, id string, status Status) error
	SetVideoCompleted(ctx context.Context, id, filePath, videoURL string) error
	SetVideoFailed(ctx context.Context, id, errMsg string) error
}
