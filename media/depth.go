package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ErrModelUnavailable signals that the depth model could not be loaded
// (missing weights or runtime). It is a first-class outcome, not a crash:
// the orchestrator degrades the job to manual selection.
var ErrModelUnavailable = errors.New("depth model unavailable")

// ModelInputSize is the fixed square input geometry of the MiDaS
// dpt_swin2_tiny_256 ONNX model.
const ModelInputSize = 256

// ImageNet channel statistics the pretrained model expects.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// DepthEngine runs monocular depth estimation through a lazily-initialized,
// process-wide ONNX network. The network is loaded at most once; a load
// failure is memoized so later calls fail fast with ErrModelUnavailable
// instead of retrying the filesystem on every job.
type DepthEngine struct {
	modelPath string
	logger    zerolog.Logger

	loadOnce  sync.Once
	available bool
	net       gocv.Net

	// OpenCV DNN nets do not tolerate concurrent Forward calls on the
	// same instance, so inference is serialized here even though the
	// weights themselves are read-only.
	inferMu sync.Mutex
}

// NewDepthEngine creates an engine for the model at modelPath. The model is
// not loaded until the first EstimateDepth call.
func NewDepthEngine(modelPath string, logger zerolog.Logger) *DepthEngine {
	return &DepthEngine{modelPath: modelPath, logger: logger}
}

func (e *DepthEngine) load() {
	if e.modelPath == "" {
		e.logger.Warn().Msg("depth: model path is empty, depth estimation disabled")
		return
	}
	if _, err := os.Stat(e.modelPath); err != nil {
		e.logger.Warn().Err(err).Str("path", e.modelPath).Msg("depth: model weights not found, depth estimation disabled")
		return
	}

	net := gocv.ReadNet(e.modelPath, "")
	if net.Empty() {
		e.logger.Error().Str("path", e.modelPath).Msg("depth: ReadNet returned an empty network")
		return
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	e.net = net
	e.available = true
	e.logger.Info().Str("path", e.modelPath).Msg("depth: model loaded")
}

// Available reports whether the model loaded, triggering the load if needed.
func (e *DepthEngine) Available() bool {
	e.loadOnce.Do(e.load)
	return e.available
}

// Close releases the network. The engine is unusable afterwards.
func (e *DepthEngine) Close() {
	e.inferMu.Lock()
	defer e.inferMu.Unlock()
	if e.available {
		e.net.Close()
		e.available = false
	}
}

// EstimateDepth runs depth estimation on the image at imagePath and returns
// a relative depth map normalized to [0,1] at the image's original
// resolution. It is a pure function of its input and the cached model. The
// forward pass itself is not interruptible; the context is honored at stage
// boundaries so a soft timeout aborts before or right after inference.
func (e *DepthEngine) EstimateDepth(ctx context.Context, imagePath string) (*DepthMap, error) {
	if !e.Available() {
		return nil, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", imagePath, err)
	}
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", origW, origH)
	}

	blobData := preprocessImage(img)
	blob, err := gocv.NewMatWithSizesFromBytes(
		[]int{1, 3, ModelInputSize, ModelInputSize}, gocv.MatTypeCV32F, blobData)
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	raw, err := e.forward(blob)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := normalizeDepth(raw)
	return resizeDepth(normalized, ModelInputSize, ModelInputSize, origW, origH), nil
}

func (e *DepthEngine) forward(blob gocv.Mat) ([]float32, error) {
	e.inferMu.Lock()
	defer e.inferMu.Unlock()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}
	if len(data) < ModelInputSize*ModelInputSize {
		return nil, fmt.Errorf("unexpected network output size %d", len(data))
	}

	// drop the batch dimension by copying exactly one plane out of the
	// Mat-owned buffer
	raw := make([]float32, ModelInputSize*ModelInputSize)
	copy(raw, data[:ModelInputSize*ModelInputSize])
	return raw, nil
}

// preprocessImage resizes to the model's fixed square input, scales pixel
// values to [0,1], applies ImageNet normalization and lays the result out
// as an NCHW float32 blob.
func preprocessImage(img image.Image) []byte {
	resized := imaging.Resize(img, ModelInputSize, ModelInputSize, imaging.Linear)

	plane := ModelInputSize * ModelInputSize
	data := make([]byte, 3*plane*4)
	for c := 0; c < 3; c++ {
		for y := 0; y < ModelInputSize; y++ {
			rowStart := y * resized.Stride
			for x := 0; x < ModelInputSize; x++ {
				v := float32(resized.Pix[rowStart+x*4+c]) / 255.0
				v = (v - imagenetMean[c]) / imagenetStd[c]
				offset := (c*plane + y*ModelInputSize + x) * 4
				binary.LittleEndian.PutUint32(data[offset:], math.Float32bits(v))
			}
		}
	}
	return data
}

// normalizeDepth min-max normalizes the raw model output to [0,1]. A flat
// output (max == min) produces an all-zero map rather than dividing by
// zero.
func normalizeDepth(raw []float32) []float32 {
	out := make([]float32, len(raw))
	if len(raw) == 0 {
		return out
	}

	min, max := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min <= 0 {
		return out
	}

	scale := 1.0 / (max - min)
	for i, v := range raw {
		out[i] = (v - min) * scale
	}
	return out
}

// resizeDepth resamples a normalized depth plane back to the original
// image's exact pixel dimensions using bilinear interpolation, preserving
// geometric correspondence with the source pixel grid.
func resizeDepth(values []float32, fromW, fromH, toW, toH int) *DepthMap {
	gray := image.NewGray(image.Rect(0, 0, fromW, fromH))
	for i, v := range values {
		gray.Pix[i] = uint8(v*255 + 0.5)
	}

	resized := imaging.Resize(gray, toW, toH, imaging.Linear)

	out := NewDepthMap(toW, toH)
	for y := 0; y < toH; y++ {
		rowStart := y * resized.Stride
		for x := 0; x < toW; x++ {
			out.Values[y*toW+x] = float32(resized.Pix[rowStart+x*4]) / 255.0
		}
	}
	return out
}
