package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/models"
	"github.com/framecraft/mockupbackend/repository"
)

// DepthEstimator is the inference contract the orchestrator depends on.
// Implementations return media.ErrModelUnavailable when the model cannot
// be loaded; tests substitute fakes.
type DepthEstimator interface {
	EstimateDepth(ctx context.Context, imagePath string) (*media.DepthMap, error)
}

// AnalysisProcessor runs wall-analysis jobs on a fixed pool of workers fed
// by a buffered queue. Jobs are independent; the only shared state is the
// read-only depth model inside the estimator.
type AnalysisProcessor struct {
	JobQueue    chan string
	Repo        repository.AnalysisRepositoryInterface
	Store       media.Store
	Engine      DepthEstimator
	SoftTimeout time.Duration
	Logger      zerolog.Logger

	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
}

// NewAnalysisProcessor starts numWorkers workers consuming from a queue of
// queueSize and returns the processor.
func NewAnalysisProcessor(repo repository.AnalysisRepositoryInterface, store media.Store, engine DepthEstimator, softTimeout time.Duration, queueSize, numWorkers int, logger zerolog.Logger) *AnalysisProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if softTimeout <= 0 {
		softTimeout = 30 * time.Second
	}
	proc := &AnalysisProcessor{
		JobQueue:    make(chan string, queueSize),
		Repo:        repo,
		Store:       store,
		Engine:      engine,
		SoftTimeout: softTimeout,
		Logger:      logger,
		StopChan:    make(chan struct{}),
		Pending:     make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	logger.Info().Int("workers", numWorkers).Int("queue_size", queueSize).Msg("started analysis worker pool")
	return proc
}

func (p *AnalysisProcessor) worker(id int) {
	defer p.Wg.Done()

	for {
		select {
		case analysisID, ok := <-p.JobQueue:
			if !ok {
				p.Logger.Info().Int("worker", id).Msg("analysis worker stopping: queue closed")
				return
			}
			p.RunAnalysis(analysisID)

			p.Mutex.Lock()
			delete(p.Pending, analysisID)
			p.Mutex.Unlock()

		case <-p.StopChan:
			p.Logger.Info().Int("worker", id).Msg("analysis worker stopping: stop signal received")
			return
		}
	}
}

// Enqueue schedules an analysis unless it is already queued. Returns false
// when the queue is full or the id is pending; enqueueing is fire-and-forget
// with at-least-once semantics, duplicates are resolved by the idempotency
// guard inside RunAnalysis.
func (p *AnalysisProcessor) Enqueue(analysisID string) bool {
	p.Mutex.Lock()
	if p.Pending[analysisID] {
		p.Mutex.Unlock()
		return true
	}
	p.Pending[analysisID] = true
	p.Mutex.Unlock()

	select {
	case p.JobQueue <- analysisID:
		p.Logger.Debug().Str("analysis_id", analysisID).Msg("queued analysis")
		return true
	default:
		p.Logger.Warn().Str("analysis_id", analysisID).Msg("analysis queue full, dropping job")
		p.Mutex.Lock()
		delete(p.Pending, analysisID)
		p.Mutex.Unlock()
		return false
	}
}

func (p *AnalysisProcessor) Stop() {
	p.Logger.Info().Msg("stopping analysis workers...")
	close(p.StopChan)
	p.Wg.Wait()
	p.Logger.Info().Msg("all analysis workers stopped")
}

// RunAnalysis executes the full pipeline for one analysis id exactly once:
// fetch, flip to processing, materialize the stored image locally, estimate
// depth, detect the wall plane, and finalize the record. Every failure path
// resolves to a terminal manual record with full-image fallback bounds; a
// re-invocation on an already-terminal record is a logged no-op.
func (p *AnalysisProcessor) RunAnalysis(analysisID string) {
	logger := p.Logger.With().Str("analysis_id", analysisID).Logger()

	analysis, err := p.Repo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Msg("analysis not found, dropping job")
		} else {
			logger.Error().Err(err).Msg("failed to fetch analysis")
		}
		return
	}
	if analysis.IsTerminal() {
		logger.Warn().Str("status", analysis.Status).Msg("analysis already terminal, skipping duplicate dispatch")
		return
	}

	if err := p.Repo.MarkProcessing(analysisID); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			logger.Warn().Msg("analysis reached terminal status concurrently, skipping")
		} else {
			logger.Error().Err(err).Msg("failed to mark analysis processing")
		}
		return
	}

	// the fallback region is always computable once dimensions are known,
	// so no pipeline failure past this point can leave the record stuck
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("analysis pipeline panicked")
			p.finalizeManual(logger, analysis, nil, fmt.Sprintf("ML processing failed: %v. Please select wall manually.", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.SoftTimeout)
	defer cancel()

	tempPath, cleanup, err := p.materialize(analysis.OriginalImage)
	// the temp file is removed on every path, including timeout and panic
	defer cleanup()
	if err != nil {
		logger.Error().Err(err).Msg("failed to materialize stored image")
		p.finalizeManual(logger, analysis, nil, fmt.Sprintf("Could not fetch stored image: %v. Please select wall manually.", err))
		return
	}

	depth, err := p.Engine.EstimateDepth(ctx, tempPath)
	switch {
	case errors.Is(err, media.ErrModelUnavailable):
		logger.Warn().Msg("depth model unavailable")
		p.finalizeManual(logger, analysis, nil, "ML processing not available. Please select wall manually.")
		return
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		logger.Warn().Dur("soft_timeout", p.SoftTimeout).Msg("analysis timed out")
		p.finalizeManual(logger, analysis, nil, "Analysis timed out. Please select wall manually.")
		return
	case err != nil:
		logger.Error().Err(err).Msg("depth estimation failed")
		p.finalizeManual(logger, analysis, nil, fmt.Sprintf("ML processing failed: %v. Please select wall manually.", err))
		return
	}

	bounds, confidence := media.DetectWallPlane(depth, analysis.OriginalWidth, analysis.OriginalHeight)
	if bounds == nil || confidence < models.ConfidenceThreshold {
		logger.Info().Float64("confidence", confidence).Msg("wall detection below acceptance threshold")
		p.finalizeManual(logger, analysis, &confidence, "Could not detect wall with high confidence. Please select manually.")
		return
	}

	// the visualization is a nice-to-have; losing it must not fail the job
	var depthRef *string
	if ref, saveErr := media.SaveDepthVisualization(p.Store, depth, analysisID); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("failed to save depth visualization")
	} else {
		depthRef = &ref
	}

	if err := p.Repo.SetCompleted(analysisID, *bounds, confidence, depthRef); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			logger.Warn().Msg("analysis finalized concurrently, keeping existing result")
			return
		}
		logger.Error().Err(err).Msg("failed to persist completed analysis")
		return
	}
	logger.Info().Float64("confidence", confidence).Interface("bounds", bounds).Msg("wall analysis completed")
}

// finalizeManual moves the analysis to its degraded terminal state with the
// full image offered as the selectable region.
func (p *AnalysisProcessor) finalizeManual(logger zerolog.Logger, analysis *models.WallAnalysis, confidence *float64, message string) {
	fallback := models.FullImageBounds(analysis.OriginalWidth, analysis.OriginalHeight)
	if err := p.Repo.SetManual(analysis.ID, fallback, confidence, message); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			logger.Warn().Msg("analysis already terminal, manual fallback skipped")
			return
		}
		logger.Error().Err(err).Msg("failed to finalize analysis as manual")
		return
	}
	logger.Info().Str("reason", message).Msg("analysis finalized as manual")
}

// materialize copies the stored (possibly remote) image into a local
// temporary file; depth inference needs random-access pixel reads that
// object storage does not provide. The returned cleanup never fails and is
// safe to call even when materialization errored.
func (p *AnalysisProcessor) materialize(ref string) (string, func(), error) {
	cleanup := func() {}

	reader, err := p.Store.Open(ref)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to open stored image '%s': %w", ref, err)
	}
	defer reader.Close()

	tempFile, err := os.CreateTemp("", "wall-analysis-*.img")
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup = func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			p.Logger.Warn().Err(removeErr).Str("path", tempPath).Msg("failed to remove temp file")
		}
	}

	if _, err := io.Copy(tempFile, reader); err != nil {
		tempFile.Close()
		return "", cleanup, fmt.Errorf("failed to copy stored image to temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", cleanup, fmt.Errorf("failed to close temp file: %w", err)
	}
	return tempPath, cleanup, nil
}
