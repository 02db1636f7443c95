package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/models"
)

// AnalysisRepository handles database operations for WallAnalysis entities
type AnalysisRepository struct {
	DB *gorm.DB
}

// NewAnalysisRepository creates a new instance of AnalysisRepository
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{DB: db}
}

func (r *AnalysisRepository) Create(analysis *models.WallAnalysis) error {
	if analysis.Status == "" {
		analysis.Status = models.AnalysisStatusPending
	}
	if analysis.WallHeightFeet <= 0 {
		analysis.WallHeightFeet = models.DefaultWallHeightFeet
	}
	if err := r.DB.Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to create wall analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(id string) (*models.WallAnalysis, error) {
	var analysis models.WallAnalysis
	err := r.DB.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get wall analysis %s: %w", id, err)
	}
	return &analysis, nil
}

// MarkProcessing flips a pending analysis to processing. The conditional
// update makes duplicate dispatch harmless: the second invocation matches
// zero rows and is reported as ErrAlreadyTerminal.
func (r *AnalysisRepository) MarkProcessing(id string) error {
	now := time.Now().UTC()
	result := r.DB.Model(&models.WallAnalysis{}).
		Where("id = ? AND status = ?", id, models.AnalysisStatusPending).
		Updates(map[string]interface{}{
			"status":     models.AnalysisStatusProcessing,
			"started_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark analysis %s processing: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedTransition(id)
	}
	return nil
}

// SetCompleted finalizes a processing analysis with an accepted detection.
func (r *AnalysisRepository) SetCompleted(id string, bounds models.Bounds, confidence float64, depthRef *string) error {
	analysis, err := r.GetByID(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ppiHolder := models.WallAnalysis{WallBounds: &bounds, WallHeightFeet: analysis.WallHeightFeet}
	ppiHolder.RecalculateScale()

	updates := map[string]interface{}{
		"status":          models.AnalysisStatusCompleted,
		"wall_bounds":     &bounds,
		"confidence":      confidence,
		"pixels_per_inch": ppiHolder.PixelsPerInch,
		"completed_at":    now,
		"error_message":   "",
	}
	if depthRef != nil {
		updates["depth_map"] = *depthRef
	}

	result := r.DB.Model(&models.WallAnalysis{}).
		Where("id = ? AND status = ?", id, models.AnalysisStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to complete analysis %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedTransition(id)
	}
	return nil
}

// SetManual finalizes any non-terminal analysis as manual with fallback
// bounds. Confidence is only written once per record.
func (r *AnalysisRepository) SetManual(id string, bounds models.Bounds, confidence *float64, message string) error {
	analysis, err := r.GetByID(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ppiHolder := models.WallAnalysis{WallBounds: &bounds, WallHeightFeet: analysis.WallHeightFeet}
	ppiHolder.RecalculateScale()

	updates := map[string]interface{}{
		"status":          models.AnalysisStatusManual,
		"wall_bounds":     &bounds,
		"pixels_per_inch": ppiHolder.PixelsPerInch,
		"error_message":   message,
		"completed_at":    now,
	}
	if confidence != nil && analysis.Confidence == nil {
		updates["confidence"] = *confidence
	}

	result := r.DB.Model(&models.WallAnalysis{}).
		Where("id = ? AND status IN ?", id, []string{
			models.AnalysisStatusPending,
			models.AnalysisStatusProcessing,
			models.AnalysisStatusFailed,
		}).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set analysis %s to manual: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedTransition(id)
	}
	return nil
}

// ApplyManualCorrection applies a user-supplied bounds and/or wall height
// update. A bounds change always marks the record manual; a height-only
// change keeps the current status. Scale is recomputed either way through
// the model's BeforeSave hook.
func (r *AnalysisRepository) ApplyManualCorrection(id string, bounds *models.Bounds, wallHeightFeet *float64) (*models.WallAnalysis, error) {
	analysis, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if bounds != nil {
		if !bounds.Valid(analysis.OriginalWidth, analysis.OriginalHeight) {
			return nil, fmt.Errorf("wall bounds %+v outside image %dx%d",
				*bounds, analysis.OriginalWidth, analysis.OriginalHeight)
		}
		analysis.WallBounds = bounds
		analysis.Status = models.AnalysisStatusManual
		if analysis.CompletedAt == nil {
			now := time.Now().UTC()
			analysis.CompletedAt = &now
		}
	}
	if wallHeightFeet != nil {
		if *wallHeightFeet <= 0 {
			return nil, fmt.Errorf("wall height must be positive, got %v", *wallHeightFeet)
		}
		analysis.WallHeightFeet = *wallHeightFeet
	}

	if err := r.DB.Save(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to apply manual correction to %s: %w", id, err)
	}
	return analysis, nil
}

func (r *AnalysisRepository) Delete(id string) error {
	result := r.DB.Where("id = ?", id).Delete(&models.WallAnalysis{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete analysis %s: %w", id, result.Error)
	}
	return nil
}

// classifyMissedTransition explains why a conditional transition matched no
// rows: either the record is gone or it is already terminal.
func (r *AnalysisRepository) classifyMissedTransition(id string) error {
	analysis, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if analysis.IsTerminal() {
		return ErrAlreadyTerminal
	}
	// record exists and is not terminal: a concurrent worker holds it
	return fmt.Errorf("analysis %s is %s, transition skipped", id, analysis.Status)
}
