package workers

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecraft/mockupbackend/models"
)

// markProcessingAt force-sets a record into processing as of startedAt,
// bypassing the repository's transition guards.
func (env *testEnv) markProcessingAt(t *testing.T, id string, startedAt time.Time) {
	t.Helper()
	err := env.db.Model(&models.WallAnalysis{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.AnalysisStatusProcessing,
			"started_at": startedAt,
		}).Error
	require.NoError(t, err)
}

func TestReclaimerForcesStuckProcessingToManual(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)

	stuck := env.seedAnalysis(t)
	env.markProcessingAt(t, stuck.ID, time.Now().UTC().Add(-2*time.Minute))

	fresh := env.seedAnalysis(t)
	env.markProcessingAt(t, fresh.ID, time.Now().UTC())

	pending := env.seedAnalysis(t)

	rc := NewReclaimer(sqlDB, env.repo, 45*time.Second, time.Minute, zerolog.Nop())
	rc.RunOnce()

	got, err := env.repo.GetByID(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusManual, got.Status)
	require.NotNil(t, got.WallBounds)
	assert.Equal(t, models.FullImageBounds(100, 80), *got.WallBounds)
	assert.Contains(t, got.ErrorMessage, "time limit")
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.PixelsPerInch)
	assert.InDelta(t, 80.0/96.0, *got.PixelsPerInch, 1e-9)

	// a job still inside its hard-timeout window is left alone
	got, err = env.repo.GetByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusProcessing, got.Status)

	// pending records are not the reclaimer's business
	got, err = env.repo.GetByID(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, got.Status)
}

func TestReclaimerRunOnceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)

	stuck := env.seedAnalysis(t)
	env.markProcessingAt(t, stuck.ID, time.Now().UTC().Add(-2*time.Minute))

	rc := NewReclaimer(sqlDB, env.repo, 45*time.Second, time.Minute, zerolog.Nop())
	rc.RunOnce()
	first, err := env.repo.GetByID(stuck.ID)
	require.NoError(t, err)

	rc.RunOnce()
	second, err := env.repo.GetByID(stuck.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	require.NotNil(t, second.CompletedAt)
	assert.WithinDuration(t, *first.CompletedAt, *second.CompletedAt, time.Millisecond)
}
