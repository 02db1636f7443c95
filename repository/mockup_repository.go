package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/models"
)

// MockupRepository handles database operations for SavedMockup entities
type MockupRepository struct {
	DB *gorm.DB
}

// NewMockupRepository creates a new instance of MockupRepository
func NewMockupRepository(db *gorm.DB) *MockupRepository {
	return &MockupRepository{DB: db}
}

func (r *MockupRepository) Create(mockup *models.SavedMockup) error {
	if err := r.DB.Create(mockup).Error; err != nil {
		return fmt.Errorf("failed to create saved mockup: %w", err)
	}
	return nil
}

func (r *MockupRepository) GetByID(id string) (*models.SavedMockup, error) {
	var mockup models.SavedMockup
	err := r.DB.Where("id = ?", id).First(&mockup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get saved mockup %s: %w", id, err)
	}
	return &mockup, nil
}

func (r *MockupRepository) ListByAnalysisID(analysisID string) ([]models.SavedMockup, error) {
	var mockups []models.SavedMockup
	err := r.DB.Where("wall_analysis_id = ?", analysisID).Order("created_at ASC").Find(&mockups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mockups for analysis %s: %w", analysisID, err)
	}
	return mockups, nil
}

func (r *MockupRepository) Delete(id string) error {
	result := r.DB.Where("id = ?", id).Delete(&models.SavedMockup{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete saved mockup %s: %w", id, result.Error)
	}
	return nil
}
