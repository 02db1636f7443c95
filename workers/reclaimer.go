package workers

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/database"
	"github.com/framecraft/mockupbackend/models"
	"github.com/framecraft/mockupbackend/repository"
)

// Reclaimer is the hard-timeout backstop. A worker killed mid-job (crash,
// forced shutdown) leaves its analysis in processing; the reclaimer forces
// any processing record older than the hard timeout to manual so no record
// is ever stuck past the hard-timeout window.
type Reclaimer struct {
	SQLDB       *sql.DB
	Repo        repository.AnalysisRepositoryInterface
	HardTimeout time.Duration
	Interval    time.Duration
	Logger      zerolog.Logger

	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReclaimer(sqlDB *sql.DB, repo repository.AnalysisRepositoryInterface, hardTimeout, interval time.Duration, logger zerolog.Logger) *Reclaimer {
	if hardTimeout <= 0 {
		hardTimeout = 45 * time.Second
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{
		SQLDB:       sqlDB,
		Repo:        repo,
		HardTimeout: hardTimeout,
		Interval:    interval,
		Logger:      logger,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the periodic reclaim loop.
func (rc *Reclaimer) Start() {
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		ticker := time.NewTicker(rc.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rc.RunOnce()
			case <-rc.stopChan:
				return
			}
		}
	}()
	rc.Logger.Info().Dur("interval", rc.Interval).Dur("hard_timeout", rc.HardTimeout).Msg("started stuck-processing reclaimer")
}

func (rc *Reclaimer) Stop() {
	close(rc.stopChan)
	rc.wg.Wait()
}

// RunOnce reclassifies every stuck processing record as manual with
// full-image fallback bounds. One record's failure does not abort the rest.
func (rc *Reclaimer) RunOnce() {
	cutoff := rc.now().UTC().Add(-rc.HardTimeout)
	ids, err := database.ListStuckProcessing(rc.SQLDB, cutoff)
	if err != nil {
		rc.Logger.Error().Err(err).Msg("reclaimer: failed to list stuck analyses")
		return
	}

	for _, id := range ids {
		analysis, err := rc.Repo.GetByID(id)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				rc.Logger.Error().Err(err).Str("analysis_id", id).Msg("reclaimer: failed to fetch analysis")
			}
			continue
		}

		fallback := models.FullImageBounds(analysis.OriginalWidth, analysis.OriginalHeight)
		err = rc.Repo.SetManual(id, fallback, nil, "Analysis exceeded the processing time limit. Please select wall manually.")
		if err != nil && !errors.Is(err, repository.ErrAlreadyTerminal) {
			rc.Logger.Error().Err(err).Str("analysis_id", id).Msg("reclaimer: failed to force analysis to manual")
			continue
		}
		rc.Logger.Warn().Str("analysis_id", id).Msg("reclaimed stuck processing analysis")
	}
}
