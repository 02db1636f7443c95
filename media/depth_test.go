package media

import (
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDepth(t *testing.T) {
	t.Run("maps range to unit interval", func(t *testing.T) {
		out := normalizeDepth([]float32{10, 20, 30})
		require.Len(t, out, 3)
		assert.InDelta(t, 0.0, out[0], 1e-6)
		assert.InDelta(t, 0.5, out[1], 1e-6)
		assert.InDelta(t, 1.0, out[2], 1e-6)
	})

	t.Run("flat output becomes all zeros", func(t *testing.T) {
		out := normalizeDepth([]float32{7, 7, 7, 7})
		for _, v := range out {
			assert.Zero(t, v)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, normalizeDepth(nil))
	})
}

func TestPreprocessImage(t *testing.T) {
	// a uniform image survives resizing unchanged, which lets the NCHW
	// layout and the per-channel normalization be checked exactly
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	fill := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}

	data := preprocessImage(img)

	plane := ModelInputSize * ModelInputSize
	require.Len(t, data, 3*plane*4)

	channels := [3]uint8{200, 100, 50}
	for c := 0; c < 3; c++ {
		want := (float32(channels[c])/255.0 - imagenetMean[c]) / imagenetStd[c]
		for _, pixel := range []int{0, plane / 2, plane - 1} {
			offset := (c*plane + pixel) * 4
			got := math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
			assert.InDelta(t, want, got, 1e-4, "channel %d pixel %d", c, pixel)
		}
	}
}

func TestResizeDepth(t *testing.T) {
	// a vertical gradient plane resampled to the source resolution keeps
	// its dimensions, range and orientation
	from := 16
	values := make([]float32, from*from)
	for y := 0; y < from; y++ {
		for x := 0; x < from; x++ {
			values[y*from+x] = float32(y) / float32(from-1)
		}
	}

	out := resizeDepth(values, from, from, 64, 48)

	require.Equal(t, 64, out.Width)
	require.Equal(t, 48, out.Height)
	require.Len(t, out.Values, 64*48)
	for _, v := range out.Values {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.Less(t, out.At(32, 2), out.At(32, 45))
}

func TestDepthEngineUnavailable(t *testing.T) {
	t.Run("missing weights", func(t *testing.T) {
		engine := NewDepthEngine(filepath.Join(t.TempDir(), "missing.onnx"), zerolog.Nop())
		assert.False(t, engine.Available())

		depth, err := engine.EstimateDepth(context.Background(), "irrelevant.jpg")
		assert.Nil(t, depth)
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("empty model path", func(t *testing.T) {
		engine := NewDepthEngine("", zerolog.Nop())
		_, err := engine.EstimateDepth(context.Background(), "irrelevant.jpg")
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("load failure is memoized", func(t *testing.T) {
		engine := NewDepthEngine(filepath.Join(t.TempDir(), "missing.onnx"), zerolog.Nop())
		for i := 0; i < 3; i++ {
			_, err := engine.EstimateDepth(context.Background(), "irrelevant.jpg")
			assert.ErrorIs(t, err, ErrModelUnavailable)
		}
	})
}
