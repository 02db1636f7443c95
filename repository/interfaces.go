package repository

import (
	"errors"

	"github.com/framecraft/mockupbackend/models"
)

// ErrAlreadyTerminal is returned when a lifecycle transition is requested on
// an analysis that already reached completed or manual. Callers treat it as
// a no-op signal, not a failure (duplicate dispatch is expected under
// at-least-once job delivery).
var ErrAlreadyTerminal = errors.New("analysis is already in a terminal status")

// AnalysisRepositoryInterface defines the methods for wall-analysis data
// operations. Transition methods are monotonic: they are implemented as
// conditional updates so a terminal record can never revert to pending or
// processing, even under concurrent duplicate processing.
type AnalysisRepositoryInterface interface {
	Create(analysis *models.WallAnalysis) error
	GetByID(id string) (*models.WallAnalysis, error)

	// MarkProcessing flips pending -> processing and stamps StartedAt.
	MarkProcessing(id string) error
	// SetCompleted finalizes processing -> completed with the accepted
	// detection result and an optional depth visualization reference.
	SetCompleted(id string, bounds models.Bounds, confidence float64, depthRef *string) error
	// SetManual finalizes any non-terminal record as manual with fallback
	// bounds and an explanatory message. Confidence is recorded when the
	// detector ran (write-once); nil leaves it untouched.
	SetManual(id string, bounds models.Bounds, confidence *float64, message string) error
	// ApplyManualCorrection applies a user PATCH of bounds and/or wall
	// height. A bounds change always moves the record to manual.
	ApplyManualCorrection(id string, bounds *models.Bounds, wallHeightFeet *float64) (*models.WallAnalysis, error)

	Delete(id string) error
}

// MockupRepositoryInterface defines the methods for saved-mockup data
// operations.
type MockupRepositoryInterface interface {
	Create(mockup *models.SavedMockup) error
	GetByID(id string) (*models.SavedMockup, error)
	ListByAnalysisID(analysisID string) ([]models.SavedMockup, error)
	Delete(id string) error
}
