package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// GormRepository is the GORM-backed implementation of Repository.
// Status updates are guarded in SQL so a row that already reached a terminal
// state is never rewritten, regardless of how many clients poll concurrently.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository on top of an open gorm.DB.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the schema for all record tables.
func (r *GormRepository) Migrate() error {
	return r.db.AutoMigrate(&User{}, &Image{}, &Project{}, &Persona{}, &Script{}, &Video{})
}

func (r *GormRepository) GetOrCreateUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = User{ID: id}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) CreateImage(ctx context.Context, img *Image) error {
	return r.db.WithContext(ctx).Create(img).Error
}

func (r *GormRepository) GetImage(ctx context.Context, id string) (*Image, error) {
	var img Image
	if err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &img, nil
}

// DeleteImage removes the image and everything generated from it. The cascade
// is done in one transaction because SQLite foreign keys may be disabled.
func (r *GormRepository) DeleteImage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var img Image
		if err := tx.First(&img, "id = ?", id).Error; err != nil {
			return mapNotFound(err)
		}

		var personaIDs []string
		if err := tx.Model(&Persona{}).Where("image_id = ?", id).Pluck("id", &personaIDs).Error; err != nil {
			return err
		}
		if len(personaIDs) > 0 {
			var scriptIDs []string
			if err := tx.Model(&Script{}).Where("persona_id IN ?", personaIDs).Pluck("id", &scriptIDs).Error; err != nil {
				return err
			}
			if len(scriptIDs) > 0 {
				if err := tx.Where("script_id IN ?", scriptIDs).Delete(&Video{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", scriptIDs).Delete(&Script{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", personaIDs).Delete(&Persona{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&img).Error
	})
}

func (r *GormRepository) CreateProject(ctx context.Context, p *Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

func (r *GormRepository) CreatePersona(ctx context.Context, p *Persona) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormRepository) GetPersona(ctx context.Context, id string) (*Persona, error) {
	var p Persona
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

func (r *GormRepository) SetPersonaDispatched(ctx context.Context, id, jobID string, status Status) error {
	return r.dispatch(ctx, &Persona{}, id, jobID, status)
}

func (r *GormRepository) SetPersonaStatus(ctx context.Context, id string, status Status) error {
	return r.setStatus(ctx, &Persona{}, id, status)
}

func (r *GormRepository) SetPersonaCompleted(ctx context.Context, id, personaText, personaJSON string) error {
	return r.complete(ctx, &Persona{}, id, map[string]any{
		"status":       StatusCompleted,
		"persona_text": personaText,
		"persona_json": personaJSON,
	})
}

func (r *GormRepository) SetPersonaFailed(ctx context.Context, id, errMsg string) error {
	return r.fail(ctx, &Persona{}, id, errMsg)
}

func (r *GormRepository) CreateScript(ctx context.Context, s *Script) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormRepository) GetScript(ctx context.Context, id string) (*Script, error) {
	var s Script
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *GormRepository) SetScriptDispatched(ctx context.Context, id, jobID string, status Status) error {
	return r.dispatch(ctx, &Script{}, id, jobID, status)
}

func (r *GormRepository) SetScriptStatus(ctx context.Context, id string, status Status) error {
	return r.setStatus(ctx, &Script{}, id, status)
}

func (r *GormRepository) SetScriptCompleted(ctx context.Context, id, scriptText string) error {
	return r.complete(ctx, &Script{}, id, map[string]any{
		"status":      StatusCompleted,
		"script_text": scriptText,
	})
}

func (r *GormRepository) SetScriptFailed(ctx context.Context, id, errMsg string) error {
	return r.fail(ctx, &Script{}, id, errMsg)
}

func (r *GormRepository) CreateVideo(ctx context.Context, v *Video) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *GormRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	var v Video
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &v, nil
}

func (r *GormRepository) SetVideoDispatched(ctx context.Context, id, jobID string, status Status) error {
	return r.dispatch(ctx, &Video{}, id, jobID, status)
}

func (r *GormRepository) SetVideoStatus(ctx context.Context, id string, status Status) error {
	return r.setStatus(ctx, &Video{}, id, status)
}

func (r *GormRepository) SetVideoCompleted(ctx context.Context, id, filePath, videoURL string) error {
	now := time.Now().UTC()
	return r.complete(ctx, &Video{}, id, map[string]any{
		"status":       StatusCompleted,
		"file_path":    filePath,
		"video_url":    videoURL,
		"completed_at": &now,
	})
}

func (r *GormRepository) SetVideoFailed(ctx context.Context, id, errMsg string) error {
	return r.fail(ctx, &Video{}, id, errMsg)
}

// dispatch stores the external job handle exactly once. The guard on
// openai_job_id keeps an already dispatched record from being re-bound to a
// different external job.
func (r *GormRepository) dispatch(ctx context.Context, model any, id, jobID string, status Status) error {
	if status.IsTerminal() {
		return fmt.Errorf("dispatch with terminal status %q", status)
	}
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status NOT IN ? AND (openai_job_id IS NULL OR openai_job_id = '')",
			id, []Status{StatusCompleted, StatusFailed}).
		Updates(map[string]any{
			"openai_job_id": jobID,
			"status":        status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	var terminal int64
	if err := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status IN ?", id, []Status{StatusCompleted, StatusFailed}).
		Count(&terminal).Error; err != nil {
		return err
	}
	if terminal > 0 {
		return ErrTerminal
	}
	return ErrAlreadyDispatched
}

func (r *GormRepository) setStatus(ctx context.Context, model any, id string, status Status) error {
	if status.IsTerminal() {
		return fmt.Errorf("setStatus with terminal status %q", status)
	}
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status NOT IN ?", id, []Status{StatusCompleted, StatusFailed}).
		Update("status", status)
	return r.checkGuarded(ctx, model, id, res)
}

func (r *GormRepository) complete(ctx context.Context, model any, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status NOT IN ?", id, []Status{StatusCompleted, StatusFailed}).
		Updates(updates)
	return r.checkGuarded(ctx, model, id, res)
}

func (r *GormRepository) fail(ctx context.Context, model any, id, errMsg string) error {
	if errMsg == "" {
		errMsg = "generation failed"
	}
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status NOT IN ?", id, []Status{StatusCompleted, StatusFailed}).
		Updates(map[string]any{
			"status": StatusFailed,
			"error":  errMsg,
		})
	return r.checkGuarded(ctx, model, id, res)
}

// checkGuarded distinguishes "row does not exist" from "row is terminal" when
// a guarded update matched nothing.
func (r *GormRepository) checkGuarded(ctx context.Context, model any, id string, res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrTerminal
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
