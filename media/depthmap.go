package media

// DepthMap is a per-pixel relative depth estimate normalized to [0,1],
// higher = optically closer to the camera, stored row-major at the source
// image's resolution.
type DepthMap struct {
	Width  int
	Height int
	Values []float32
}

// NewDepthMap allocates a zeroed map of the given dimensions.
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

// At returns the depth value at pixel (x, y). Bounds are not checked.
func (d *DepthMap) At(x, y int) float32 {
	return d.Values[y*d.Width+x]
}

// Set writes the depth value at pixel (x, y). Bounds are not checked.
func (d *DepthMap) Set(x, y int, v float32) {
	d.Values[y*d.Width+x] = v
}

// Empty reports whether the map has no pixels.
func (d *DepthMap) Empty() bool {
	return d == nil || d.Width <= 0 || d.Height <= 0 || len(d.Values) == 0
}
