package utils

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// ImageInfo holds the pixel dimensions of an uploaded image after
// accounting for EXIF orientation.
type ImageInfo struct {
	Width       int
	Height      int
	Orientation int
}

// ReadImageInfo inspects encoded image bytes and returns display
// dimensions. Phone cameras frequently store rotated pixels with an EXIF
// orientation tag; orientations 5-8 swap the effective width and height.
func ReadImageInfo(data []byte) (ImageInfo, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image header: %w", err)
	}

	info := ImageInfo{Width: cfg.Width, Height: cfg.Height, Orientation: 1}

	exifData, err := exif.Decode(bytes.NewReader(data))
	if err == nil && exifData != nil {
		if tag, tagErr := exifData.Get(exif.Orientation); tagErr == nil && tag != nil {
			if orientation, valErr := tag.Int(0); valErr == nil {
				info.Orientation = orientation
			}
		}
	}

	if info.Orientation >= 5 && info.Orientation <= 8 {
		info.Width, info.Height = info.Height, info.Width
	}
	return info, nil
}
