package workers

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/models"
)

func (env *testEnv) backdateCreatedAt(t *testing.T, id string, createdAt time.Time) {
	t.Helper()
	err := env.db.Model(&models.WallAnalysis{}).
		Where("id = ?", id).
		Update("created_at", createdAt).Error
	require.NoError(t, err)
}

func (env *testEnv) seedMockup(t *testing.T, analysisID string) *models.SavedMockup {
	t.Helper()

	id := uuid.NewString()
	ref, err := env.store.Save(media.AssetTypeMockup, "mockup_"+id+".png", bytes.NewReader([]byte("rendered mockup")))
	require.NoError(t, err)

	mockup := &models.SavedMockup{
		ID:             id,
		WallAnalysisID: analysisID,
		MockupImage:    ref,
		Config:         models.MockupConfig{"prints": []interface{}{}},
	}
	require.NoError(t, env.mockupRepo.Create(mockup))
	return mockup
}

func (env *testEnv) assertAssetGone(t *testing.T, ref string) {
	t.Helper()
	_, err := env.store.Open(ref)
	assert.Error(t, err, "asset %s should have been deleted", ref)
}

func (env *testEnv) assertAssetExists(t *testing.T, ref string) {
	t.Helper()
	reader, err := env.store.Open(ref)
	require.NoError(t, err, "asset %s should still exist", ref)
	reader.Close()
}

func TestRetentionSweepDeletesExpiredAnalyses(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)

	// expired: 25h old, with a depth visualization and a saved mockup
	expired := env.seedAnalysis(t)
	depthRef, err := env.store.Save(media.AssetTypeDepth, "depth_"+expired.ID+".png", bytes.NewReader([]byte("depth png")))
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.WallAnalysis{}).
		Where("id = ?", expired.ID).
		Update("depth_map", depthRef).Error)
	mockup := env.seedMockup(t, expired.ID)
	env.backdateCreatedAt(t, expired.ID, time.Now().UTC().Add(-25*time.Hour))

	// recent: 1h old, must survive untouched
	recent := env.seedAnalysis(t)
	env.backdateCreatedAt(t, recent.ID, time.Now().UTC().Add(-time.Hour))

	sweeper := NewRetentionSweeper(sqlDB, env.repo, env.mockupRepo, env.store, 24*time.Hour, 6*time.Hour, zerolog.Nop())
	sweeper.RunOnce()

	_, err = env.repo.GetByID(expired.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = env.mockupRepo.GetByID(mockup.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	env.assertAssetGone(t, expired.OriginalImage)
	env.assertAssetGone(t, depthRef)
	env.assertAssetGone(t, mockup.MockupImage)

	kept, err := env.repo.GetByID(recent.ID)
	require.NoError(t, err)
	assert.Equal(t, recent.ID, kept.ID)
	env.assertAssetExists(t, recent.OriginalImage)
}

func TestRetentionSweepIgnoresMissingFiles(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)

	// the record's files disappeared out of band; the row still goes away
	expired := env.seedAnalysis(t)
	require.NoError(t, env.store.Delete(expired.OriginalImage))
	missingDepth := "depth/depth_" + expired.ID + ".png"
	require.NoError(t, env.db.Model(&models.WallAnalysis{}).
		Where("id = ?", expired.ID).
		Update("depth_map", missingDepth).Error)
	env.backdateCreatedAt(t, expired.ID, time.Now().UTC().Add(-48*time.Hour))

	sweeper := NewRetentionSweeper(sqlDB, env.repo, env.mockupRepo, env.store, 24*time.Hour, 6*time.Hour, zerolog.Nop())
	sweeper.RunOnce()

	_, err = env.repo.GetByID(expired.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRetentionSweepHandlesMultipleRecords(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)

	first := env.seedAnalysis(t)
	env.backdateCreatedAt(t, first.ID, time.Now().UTC().Add(-30*time.Hour))
	second := env.seedAnalysis(t)
	env.backdateCreatedAt(t, second.ID, time.Now().UTC().Add(-25*time.Hour))

	sweeper := NewRetentionSweeper(sqlDB, env.repo, env.mockupRepo, env.store, 24*time.Hour, 6*time.Hour, zerolog.Nop())
	sweeper.RunOnce()

	_, err = env.repo.GetByID(first.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = env.repo.GetByID(second.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
