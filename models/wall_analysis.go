package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Analysis lifecycle statuses. Transitions only move forward:
// pending -> processing -> completed | manual. "failed" exists for
// completeness but every failure path degrades into manual with
// full-image fallback bounds before it would ever be persisted.
const (
	AnalysisStatusPending    = "pending"
	AnalysisStatusProcessing = "processing"
	AnalysisStatusCompleted  = "completed"
	AnalysisStatusManual     = "manual"
	AnalysisStatusFailed     = "failed"
)

// DefaultWallHeightFeet is assumed when the caller does not supply a
// real-world wall height.
const DefaultWallHeightFeet = 8.0

// ConfidenceThreshold is the minimum detector confidence required to
// accept an automatic detection as "completed".
const ConfidenceThreshold = 0.3

// Bounds is an axis-aligned rectangle in source-image pixel coordinates.
// Bottom and Right are exclusive, so the full image is {0, H, 0, W}.
type Bounds struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// FullImageBounds returns the safe default region covering the whole image.
func FullImageBounds(width, height int) Bounds {
	return Bounds{Top: 0, Bottom: height, Left: 0, Right: width}
}

// Valid reports whether the rectangle is non-empty and lies within an
// image of the given dimensions.
func (b Bounds) Valid(width, height int) bool {
	return b.Left >= 0 && b.Left < b.Right && b.Right <= width &&
		b.Top >= 0 && b.Top < b.Bottom && b.Bottom <= height
}

// HeightPx returns the rectangle height in pixels.
func (b Bounds) HeightPx() int {
	return b.Bottom - b.Top
}

// Scan implements sql.Scanner so Bounds can live in a JSON text column.
func (b *Bounds) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("unsupported type %T for Bounds", value)
	}
}

// Value implements driver.Valuer.
func (b Bounds) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// WallAnalysis is one wall-detection job for an uploaded room photo. The
// record owns its original image and any derived depth visualization; both
// are released when the record is deleted.
type WallAnalysis struct {
	ID string `gorm:"primaryKey" json:"id"`

	// OriginalImage is the storage reference for the uploaded photo.
	OriginalImage  string `gorm:"not null" json:"original_image"`
	OriginalWidth  int    `gorm:"not null" json:"original_width"`
	OriginalHeight int    `gorm:"not null" json:"original_height"`

	Status       string `gorm:"not null;default:pending;index" json:"status"`
	ErrorMessage string `gorm:"" json:"error_message,omitempty"`

	// DepthMap references the derived depth visualization; only present
	// once the analysis completed successfully.
	DepthMap   *string  `gorm:"" json:"depth_map,omitempty"`
	WallBounds *Bounds  `gorm:"type:text" json:"wall_bounds,omitempty"`
	Confidence *float64 `gorm:"" json:"confidence,omitempty"`

	WallHeightFeet float64  `gorm:"not null;default:8" json:"wall_height_feet"`
	PixelsPerInch  *float64 `gorm:"" json:"pixels_per_inch,omitempty"`

	// SessionKey ties anonymous uploads to a browser session.
	SessionKey string `gorm:"index" json:"-"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	StartedAt   *time.Time `gorm:"" json:"-"`
	CompletedAt *time.Time `gorm:"" json:"completed_at,omitempty"`
}

func (WallAnalysis) TableName() string {
	return "wall_analyses"
}

// IsTerminal reports whether the analysis reached a final status.
func (wa *WallAnalysis) IsTerminal() bool {
	switch wa.Status {
	case AnalysisStatusCompleted, AnalysisStatusManual, AnalysisStatusFailed:
		return true
	}
	return false
}

// RecalculateScale derives pixels_per_inch from the wall bounds height and
// the stated wall height. It is a pure function of those two fields; it
// clears the scale when either input is unusable.
func (wa *WallAnalysis) RecalculateScale() {
	if wa.WallBounds == nil || wa.WallHeightFeet <= 0 {
		wa.PixelsPerInch = nil
		return
	}
	heightPx := wa.WallBounds.HeightPx()
	if heightPx <= 0 {
		wa.PixelsPerInch = nil
		return
	}
	ppi := float64(heightPx) / (wa.WallHeightFeet * 12)
	wa.PixelsPerInch = &ppi
}

// BeforeSave keeps the derived scale consistent with bounds and wall height
// on every write path.
func (wa *WallAnalysis) BeforeSave(tx *gorm.DB) error {
	wa.RecalculateScale()
	return nil
}
