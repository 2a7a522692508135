// Package record provides the persisted job records for the ad generation
// pipeline. Each stage (persona, script, video) is tracked by one record that
// holds the external job handle, the lifecycle status and the stage result.
package record

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status represents the lifecycle state of a stage record.
type Status string

const (
	// StatusQueued indicates the external job is waiting to be picked up.
	StatusQueued Status = "queued"
	// StatusProcessing indicates the external job is running, or the record
	// was just created and dispatch is in flight.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the stage finished and the result is stored.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the stage failed; Error holds the reason.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions defines which state transitions are allowed.
// A record is created as "processing" before dispatch, so the gateway may
// still report the job as "queued" on the first refresh.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusQueued, StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// User owns images and projects. Users are created implicitly on first use.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Credits   int       `gorm:"not null;default:0" json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Image is an uploaded product photo. Deleting an image cascades to the
// personas (and transitively scripts and videos) that reference it.
type Image struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index:ix_images_user_created,priority:1;not null" json:"-"`
	FilePath  string    `gorm:"type:varchar(512);not null" json:"-"`
	URL       string    `gorm:"type:varchar(512);not null" json:"url"`
	CreatedAt time.Time `gorm:"index:ix_images_user_created,priority:2" json:"created_at"`

	Personas []Persona `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Image) TableName() string { return "images" }

// Project groups generated personas, scripts and videos for one product.
type Project struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"type:varchar(36);index;not null" json:"-"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Project) TableName() string { return "projects" }

// Persona is the stage-1 record: a synthetic customer persona generated from
// the product photo and description.
type Persona struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID         string    `gorm:"type:varchar(36);index;not null" json:"project_id"`
	ImageID           string    `gorm:"type:varchar(36);index;not null" json:"image_id"`
	ProductName       string    `gorm:"type:varchar(255);not null" json:"product_name"`
	Description       string    `gorm:"type:text;not null" json:"description"`
	PersonDescription string    `gorm:"type:text" json:"person_description"`
	Status            Status    `gorm:"type:varchar(16);not null;default:processing" json:"status"`
	OpenAIJobID       string    `gorm:"type:varchar(128);index" json:"openai_job_id,omitempty"`
	PersonaJSON       string    `gorm:"type:text" json:"persona_json,omitempty"`
	PersonaText       string    `gorm:"type:text" json:"persona_text,omitempty"`
	Error             string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`

	Scripts []Script `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Persona) TableName() string { return "personas" }

// Script is the stage-2 record: an advertising script derived from a persona.
type Script struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PersonaID   string    `gorm:"type:varchar(36);index;not null" json:"persona_id"`
	Tone        string    `gorm:"type:varchar(64)" json:"tone,omitempty"`
	Status      Status    `gorm:"type:varchar(16);not null;default:processing" json:"status"`
	OpenAIJobID string    `gorm:"type:varchar(128);index" json:"openai_job_id,omitempty"`
	ScriptText  string    `gorm:"type:text" json:"script_text,omitempty"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Videos []Video `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Script) TableName() string { return "scripts" }

// Video is the stage-3 record: the rendered ad video. On completion FilePath
// holds the storage locator and VideoURL the public URL.
type Video struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ScriptID    string     `gorm:"type:varchar(36);index;not null" json:"script_id"`
	Status      Status     `gorm:"type:varchar(16);not null;default:queued;index:ix_videos_status_created,priority:1" json:"status"`
	OpenAIJobID string     `gorm:"type:varchar(128);index" json:"openai_job_id,omitempty"`
	FilePath    string     `gorm:"type:varchar(512)" json:"-"`
	VideoURL    string     `gorm:"type:varchar(512)" json:"video_url,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `gorm:"index:ix_videos_status_created,priority:2" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (Video) TableName() string { return "videos" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (u *User) BeforeCreate(*gorm.DB) error    { u.ID = orNewID(u.ID); return nil }
func (i *Image) BeforeCreate(*gorm.DB) error   { i.ID = orNewID(i.ID); return nil }
func (p *Project) BeforeCreate(*gorm.DB) error { p.ID = orNewID(p.ID); return nil }
func (p *Persona) BeforeCreate(*gorm.DB) error { p.ID = orNewID(p.ID); return nil }
func (s *Script) BeforeCreate(*gorm.DB) error  { s.ID = orNewID(s.ID); return nil }
func (v *Video) BeforeCreate(*gorm.DB) error   { v.ID = orNewID(v.ID); return nil }

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
