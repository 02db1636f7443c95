package media

import (
	"math"

	"github.com/framecraft/mockupbackend/models"
)

// Wall plane detection heuristics. A back wall shows up in a depth map as a
// broad connected region at roughly constant mid-to-far depth; furniture is
// closer (higher values) and narrower, floors and ceilings drift in depth
// along one axis and fail the plateau tolerance. The constants below were
// tuned on indoor photos and are deliberately package-level so they can be
// retuned without touching the algorithm.
const (
	depthHistogramBins = 64

	// plateaus nearer than this are treated as foreground, not wall
	maxWallDepth = 0.75

	// how far a pixel may deviate from the plateau depth and still count
	plateauTolerance = 0.08

	// candidate regions covering less of the image than this are rejected
	// (avoids "detecting" a picture frame or cushion as the wall)
	minWallAreaFraction = 0.15

	// bounding boxes at or above this share of the image earn full
	// area weight in the confidence score
	fullCoverageFraction = 0.5
)

// DetectWallPlane finds the dominant flat wall region in a depth map and
// scores it. It returns nil bounds and zero confidence when no plausible
// wall exists; that is a valid result, not an error. The function is pure
// and deterministic: the same depth map always yields the same answer.
func DetectWallPlane(depth *DepthMap, imageWidth, imageHeight int) (*models.Bounds, float64) {
	if depth.Empty() || imageWidth <= 0 || imageHeight <= 0 {
		return nil, 0
	}

	w, h := depth.Width, depth.Height
	total := w * h

	// histogram of depth values; the wall forms a tall bin in the
	// mid-to-far range
	var hist [depthHistogramBins]int
	for _, v := range depth.Values {
		bin := int(v * depthHistogramBins)
		if bin >= depthHistogramBins {
			bin = depthHistogramBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}

	bestBin, bestCount := -1, 0
	for i := 0; i < depthHistogramBins; i++ {
		center := (float64(i) + 0.5) / depthHistogramBins
		if center > maxWallDepth {
			break
		}
		// strict comparison: ties resolve to the farther plateau
		if hist[i] > bestCount {
			bestBin, bestCount = i, hist[i]
		}
	}
	if bestBin < 0 || bestCount == 0 {
		return nil, 0
	}

	plateauDepth := float32((float64(bestBin) + 0.5) / depthHistogramBins)
	mask := make([]bool, total)
	for i, v := range depth.Values {
		d := v - plateauDepth
		if d < 0 {
			d = -d
		}
		mask[i] = d <= plateauTolerance
	}

	comp := largestComponent(mask, w, h)
	if comp.size == 0 || float64(comp.size)/float64(total) < minWallAreaFraction {
		return nil, 0
	}

	bounds := models.Bounds{
		Top:    comp.minY,
		Bottom: comp.maxY + 1,
		Left:   comp.minX,
		Right:  comp.maxX + 1,
	}

	rectArea := float64(bounds.HeightPx() * (bounds.Right - bounds.Left))
	fill := float64(comp.size) / rectArea
	coverage := rectArea / float64(total)

	confidence := fill * math.Min(1.0, coverage/fullCoverageFraction)
	if confidence > 1.0 {
		confidence = 1.0
	}

	// the depth map is produced at source resolution, but scale the
	// rectangle if a caller hands in a map at a different grid
	if w != imageWidth || h != imageHeight {
		bounds = scaleBounds(bounds, w, h, imageWidth, imageHeight)
	}
	if !bounds.Valid(imageWidth, imageHeight) {
		return nil, 0
	}

	return &bounds, confidence
}

type component struct {
	size                   int
	minX, maxX, minY, maxY int
}

// largestComponent finds the biggest 4-connected region of set pixels using
// a row-major scan with an explicit BFS queue, so results are independent
// of map iteration order.
func largestComponent(mask []bool, w, h int) component {
	visited := make([]bool, len(mask))
	queue := make([]int, 0, 1024)
	var best component

	for start := 0; start < len(mask); start++ {
		if !mask[start] || visited[start] {
			continue
		}

		cur := component{minX: w, minY: h, maxX: -1, maxY: -1}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%w, idx/w

			cur.size++
			if x < cur.minX {
				cur.minX = x
			}
			if x > cur.maxX {
				cur.maxX = x
			}
			if y < cur.minY {
				cur.minY = y
			}
			if y > cur.maxY {
				cur.maxY = y
			}

			if x > 0 && mask[idx-1] && !visited[idx-1] {
				visited[idx-1] = true
				queue = append(queue, idx-1)
			}
			if x < w-1 && mask[idx+1] && !visited[idx+1] {
				visited[idx+1] = true
				queue = append(queue, idx+1)
			}
			if y > 0 && mask[idx-w] && !visited[idx-w] {
				visited[idx-w] = true
				queue = append(queue, idx-w)
			}
			if y < h-1 && mask[idx+w] && !visited[idx+w] {
				visited[idx+w] = true
				queue = append(queue, idx+w)
			}
		}

		if cur.size > best.size {
			best = cur
		}
	}
	return best
}

func scaleBounds(b models.Bounds, fromW, fromH, toW, toH int) models.Bounds {
	scaleX := float64(toW) / float64(fromW)
	scaleY := float64(toH) / float64(fromH)
	return models.Bounds{
		Top:    int(math.Round(float64(b.Top) * scaleY)),
		Bottom: int(math.Round(float64(b.Bottom) * scaleY)),
		Left:   int(math.Round(float64(b.Left) * scaleX)),
		Right:  int(math.Round(float64(b.Right) * scaleX)),
	}
}
