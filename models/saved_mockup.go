package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MockupConfig captures the print placements that produced a saved mockup.
// It is opaque to the backend and stored as JSON.
type MockupConfig map[string]interface{}

func (c *MockupConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported type %T for MockupConfig", value)
	}
}

func (c MockupConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// SavedMockup is a rendered mockup image a user chose to keep or share. It
// references a WallAnalysis by id without owning it, but owns its own
// rendered image file, which must be released before the referenced
// analysis is swept.
type SavedMockup struct {
	ID             string `gorm:"primaryKey" json:"id"`
	WallAnalysisID string `gorm:"not null;index" json:"wall_analysis_id"`

	MockupImage string       `gorm:"not null" json:"mockup_image"`
	Config      MockupConfig `gorm:"type:text" json:"config"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SavedMockup) TableName() string {
	return "saved_mockups"
}
