package record

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo := NewGormRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func createTestPersona(t *testing.T, repo *GormRepository, status Status) *Persona {
	t.Helper()

	p := &Persona{
		ProjectID:   "proj-1",
		ImageID:     "img-1",
		ProductName: "Ceramic Mug",
		Description: "A handmade ceramic mug",
		Status:      status,
	}
	require.NoError(t, repo.CreatePersona(context.Background(), p))
	return p
}

func TestGetOrCreateUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u1, err := repo.GetOrCreateUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u1.ID)
	assert.Equal(t, 0, u1.Credits)

	// Second call must return the same row, not create a duplicate.
	u2, err := repo.GetOrCreateUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, u1.CreatedAt.Unix(), u2.CreatedAt.Unix())
}

func TestImageRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	img := &Image{
		UserID:   "user-1",
		FilePath: "/data/uploads/photo.png",
		URL:      "http://localhost:8080/files/uploads/photo.png",
	}
	require.NoError(t, repo.CreateImage(ctx, img))
	require.NotEmpty(t, img.ID)

	got, err := repo.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.FilePath, got.FilePath)
	assert.Equal(t, img.URL, got.URL)

	_, err = repo.GetImage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Project{UserID: "user-1", Name: "Spring Campaign"}
	require.NoError(t, repo.CreateProject(ctx, p))

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Campaign", got.Name)

	_, err = repo.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDispatchStoresHandleOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := createTestPersona(t, repo, StatusProcessing)

	err := repo.SetPersonaDispatched(ctx, p.ID, "resp_abc", StatusQueued)
	require.NoError(t, err)

	got, err := repo.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "resp_abc", got.OpenAIJobID)
	assert.Equal(t, StatusQueued, got.Status)

	// The handle is write-once: a second dispatch must not rebind the record.
	err = repo.SetPersonaDispatched(ctx, p.ID, "resp_other", StatusQueued)
	assert.ErrorIs(t, err, ErrAlreadyDispatched)

	got, err = repo.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "resp_abc", got.OpenAIJobID)
}

func TestDispatchGuards(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		err := repo.SetPersonaDispatched(ctx, "missing", "resp_x", StatusQueued)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("terminal record", func(t *testing.T) {
		p := createTestPersona(t, repo, StatusFailed)
		err := repo.SetPersonaDispatched(ctx, p.ID, "resp_x", StatusQueued)
		assert.ErrorIs(t, err, ErrTerminal)
	})

	t.Run("terminal dispatch status rejected", func(t *testing.T) {
		p := createTestPersona(t, repo, StatusProcessing)
		err := repo.SetPersonaDispatched(ctx, p.ID, "resp_x", StatusCompleted)
		assert.Error(t, err)
	})
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := createTestPersona(t, repo, StatusProcessing)

	require.NoError(t, repo.SetPersonaCompleted(ctx, p.ID, "persona text", `{"name":"Ana"}`))

	t.Run("fail after complete", func(t *testing.T) {
		err := repo.SetPersonaFailed(ctx, p.ID, "boom")
		assert.ErrorIs(t, err, ErrTerminal)
	})

	t.Run("complete after complete", func(t *testing.T) {
		err := repo.SetPersonaCompleted(ctx, p.ID, "other", "")
		assert.ErrorIs(t, err, ErrTerminal)
	})

	t.Run("status after complete", func(t *testing.T) {
		err := repo.SetPersonaStatus(ctx, p.ID, StatusQueued)
		assert.ErrorIs(t, err, ErrTerminal)
	})

	got, err := repo.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "persona text", got.PersonaText)
	assert.Equal(t, `{"name":"Ana"}`, got.PersonaJSON)
	assert.Empty(t, got.Error)
}

func TestSetStatusRejectsTerminalValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := createTestPersona(t, repo, StatusProcessing)

	// Terminal states go through the dedicated completion and failure paths.
	assert.Error(t, repo.SetPersonaStatus(ctx, p.ID, StatusCompleted))
	assert.Error(t, repo.SetPersonaStatus(ctx, p.ID, StatusFailed))
}

func TestSetPersonaFailedDefaultsMessage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := createTestPersona(t, repo, StatusProcessing)

	require.NoError(t, repo.SetPersonaFailed(ctx, p.ID, ""))

	got, err := repo.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestSetVideoCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := &Video{ScriptID: "script-1", Status: StatusProcessing}
	require.NoError(t, repo.CreateVideo(ctx, v))
	require.NoError(t, repo.SetVideoDispatched(ctx, v.ID, "video_abc", StatusQueued))

	require.NoError(t, repo.SetVideoCompleted(ctx, v.ID, "/data/videos/out.mp4", "http://localhost:8080/files/videos/out.mp4"))

	got, err := repo.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "/data/videos/out.mp4", got.FilePath)
	assert.Equal(t, "http://localhost:8080/files/videos/out.mp4", got.VideoURL)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestScriptLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sc := &Script{PersonaID: "persona-1", Tone: "playful", Status: StatusProcessing}
	require.NoError(t, repo.CreateScript(ctx, sc))

	require.NoError(t, repo.SetScriptDispatched(ctx, sc.ID, "resp_s1", StatusProcessing))
	require.NoError(t, repo.SetScriptStatus(ctx, sc.ID, StatusQueued))
	require.NoError(t, repo.SetScriptCompleted(ctx, sc.ID, "Scene one: the mug."))

	got, err := repo.GetScript(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "Scene one: the mug.", got.ScriptText)

	assert.ErrorIs(t, repo.SetScriptFailed(ctx, sc.ID, "late failure"), ErrTerminal)
}

func TestDeleteImageCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	img := &Image{UserID: "user-1", FilePath: "/data/uploads/a.png", URL: "http://x/files/uploads/a.png"}
	require.NoError(t, repo.CreateImage(ctx, img))

	p := &Persona{ProjectID: "proj-1", ImageID: img.ID, ProductName: "Mug", Description: "d", Status: StatusCompleted}
	require.NoError(t, repo.CreatePersona(ctx, p))

	sc := &Script{PersonaID: p.ID, Status: StatusCompleted}
	require.NoError(t, repo.CreateScript(ctx, sc))

	v := &Video{ScriptID: sc.ID, Status: StatusProcessing}
	require.NoError(t, repo.CreateVideo(ctx, v))

	require.NoError(t, repo.DeleteImage(ctx, img.ID))

	_, err := repo.GetImage(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetPersona(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetScript(ctx, sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetVideo(ctx, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteImageNotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.DeleteImage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
