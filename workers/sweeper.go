package workers

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/database"
	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/repository"
)

// RetentionSweeper deletes analysis records past the retention age along
// with every file they own. Saved mockups referencing an analysis are
// removed first, one by one, so their rendered images are released — a
// blanket cascading row delete at the storage layer would leave orphaned
// binaries behind.
type RetentionSweeper struct {
	SQLDB        *sql.DB
	Repo         repository.AnalysisRepositoryInterface
	MockupRepo   repository.MockupRepositoryInterface
	Store        media.Store
	RetentionAge time.Duration
	Interval     time.Duration
	Logger       zerolog.Logger

	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRetentionSweeper(sqlDB *sql.DB, repo repository.AnalysisRepositoryInterface, mockupRepo repository.MockupRepositoryInterface, store media.Store, retentionAge, interval time.Duration, logger zerolog.Logger) *RetentionSweeper {
	if retentionAge <= 0 {
		retentionAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &RetentionSweeper{
		SQLDB:        sqlDB,
		Repo:         repo,
		MockupRepo:   mockupRepo,
		Store:        store,
		RetentionAge: retentionAge,
		Interval:     interval,
		Logger:       logger,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the periodic sweep loop, independent of the request path.
func (s *RetentionSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				return
			}
		}
	}()
	s.Logger.Info().Dur("interval", s.Interval).Dur("retention_age", s.RetentionAge).Msg("started retention sweeper")
}

func (s *RetentionSweeper) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// RunOnce sweeps every analysis older than the retention age. A failure on
// one record is logged and the sweep continues with the rest.
func (s *RetentionSweeper) RunOnce() {
	cutoff := s.now().UTC().Add(-s.RetentionAge)
	ids, err := database.ListExpired(s.SQLDB, cutoff)
	if err != nil {
		s.Logger.Error().Err(err).Msg("sweeper: failed to list expired analyses")
		return
	}

	swept := 0
	for _, id := range ids {
		if err := s.sweepOne(id); err != nil {
			s.Logger.Error().Err(err).Str("analysis_id", id).Msg("sweeper: failed to delete analysis")
			continue
		}
		swept++
	}
	if len(ids) > 0 {
		s.Logger.Info().Int("candidates", len(ids)).Int("deleted", swept).Msg("retention sweep complete")
	}
}

func (s *RetentionSweeper) sweepOne(id string) error {
	analysis, err := s.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	// downstream artifacts first: each saved mockup owns its rendered image
	mockups, err := s.MockupRepo.ListByAnalysisID(id)
	if err != nil {
		return err
	}
	for _, mockup := range mockups {
		if err := s.Store.Delete(mockup.MockupImage); err != nil {
			s.Logger.Warn().Err(err).Str("mockup_id", mockup.ID).Msg("sweeper: failed to delete mockup image")
		}
		if err := s.MockupRepo.Delete(mockup.ID); err != nil {
			return err
		}
	}

	if analysis.DepthMap != nil {
		if err := s.Store.Delete(*analysis.DepthMap); err != nil {
			s.Logger.Warn().Err(err).Str("analysis_id", id).Msg("sweeper: failed to delete depth visualization")
		}
	}
	if err := s.Store.Delete(analysis.OriginalImage); err != nil {
		s.Logger.Warn().Err(err).Str("analysis_id", id).Msg("sweeper: failed to delete original image")
	}

	return s.Repo.Delete(id)
}
