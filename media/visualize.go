package media

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// RenderDepthImage converts a normalized depth map into a grayscale
// image, brighter = closer.
func RenderDepthImage(depth *DepthMap) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, depth.Width, depth.Height))
	for i, v := range depth.Values {
		gray.Pix[i] = uint8(v*255 + 0.5)
	}
	return gray
}

// SaveDepthVisualization encodes the depth map as a PNG and stores it as a
// derived artifact of the given analysis, returning the asset reference.
func SaveDepthVisualization(store Store, depth *DepthMap, analysisID string) (string, error) {
	gray := RenderDepthImage(depth)

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, gray, imaging.PNG)
		if err != nil {
			writer.CloseWithError(fmt.Errorf("depth visualization encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	filename := fmt.Sprintf("depth_%s.png", analysisID)
	ref, err := store.Save(AssetTypeDepth, filename, reader)
	if err != nil {
		return "", fmt.Errorf("failed to save depth visualization: %w", err)
	}
	return ref, nil
}
