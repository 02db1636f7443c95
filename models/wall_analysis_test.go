package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsValid(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		valid  bool
	}{
		{"full image", Bounds{Top: 0, Bottom: 800, Left: 0, Right: 1000}, true},
		{"interior rectangle", Bounds{Top: 50, Bottom: 750, Left: 100, Right: 900}, true},
		{"single pixel", Bounds{Top: 0, Bottom: 1, Left: 0, Right: 1}, true},
		{"zero height", Bounds{Top: 100, Bottom: 100, Left: 0, Right: 500}, false},
		{"inverted", Bounds{Top: 700, Bottom: 50, Left: 100, Right: 900}, false},
		{"negative left", Bounds{Top: 0, Bottom: 800, Left: -1, Right: 1000}, false},
		{"past right edge", Bounds{Top: 0, Bottom: 800, Left: 0, Right: 1001}, false},
		{"past bottom edge", Bounds{Top: 0, Bottom: 801, Left: 0, Right: 1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.bounds.Valid(1000, 800))
		})
	}
}

func TestFullImageBounds(t *testing.T) {
	b := FullImageBounds(1000, 800)
	assert.Equal(t, Bounds{Top: 0, Bottom: 800, Left: 0, Right: 1000}, b)
	assert.True(t, b.Valid(1000, 800))
	assert.Equal(t, 800, b.HeightPx())
}

func TestRecalculateScale(t *testing.T) {
	t.Run("derives pixels per inch from bounds height", func(t *testing.T) {
		wa := WallAnalysis{
			WallBounds:     &Bounds{Top: 50, Bottom: 750, Left: 100, Right: 900},
			WallHeightFeet: 8,
		}
		wa.RecalculateScale()
		require.NotNil(t, wa.PixelsPerInch)
		// 700px spanning 96 inches
		assert.InDelta(t, 700.0/96.0, *wa.PixelsPerInch, 1e-9)
	})

	t.Run("responds to wall height changes", func(t *testing.T) {
		wa := WallAnalysis{
			WallBounds:     &Bounds{Top: 0, Bottom: 960, Left: 0, Right: 1000},
			WallHeightFeet: 8,
		}
		wa.RecalculateScale()
		require.NotNil(t, wa.PixelsPerInch)
		assert.InDelta(t, 10.0, *wa.PixelsPerInch, 1e-9)

		wa.WallHeightFeet = 10
		wa.RecalculateScale()
		require.NotNil(t, wa.PixelsPerInch)
		assert.InDelta(t, 8.0, *wa.PixelsPerInch, 1e-9)
	})

	t.Run("clears scale without bounds", func(t *testing.T) {
		ppi := 10.0
		wa := WallAnalysis{WallHeightFeet: 8, PixelsPerInch: &ppi}
		wa.RecalculateScale()
		assert.Nil(t, wa.PixelsPerInch)
	})

	t.Run("clears scale on unusable inputs", func(t *testing.T) {
		wa := WallAnalysis{
			WallBounds:     &Bounds{Top: 100, Bottom: 100, Left: 0, Right: 500},
			WallHeightFeet: 8,
		}
		wa.RecalculateScale()
		assert.Nil(t, wa.PixelsPerInch)

		wa = WallAnalysis{
			WallBounds:     &Bounds{Top: 0, Bottom: 800, Left: 0, Right: 1000},
			WallHeightFeet: 0,
		}
		wa.RecalculateScale()
		assert.Nil(t, wa.PixelsPerInch)
	})
}

func TestIsTerminal(t *testing.T) {
	terminal := []string{AnalysisStatusCompleted, AnalysisStatusManual, AnalysisStatusFailed}
	for _, status := range terminal {
		wa := WallAnalysis{Status: status}
		assert.True(t, wa.IsTerminal(), status)
	}
	for _, status := range []string{AnalysisStatusPending, AnalysisStatusProcessing} {
		wa := WallAnalysis{Status: status}
		assert.False(t, wa.IsTerminal(), status)
	}
}
