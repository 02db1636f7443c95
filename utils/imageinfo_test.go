package utils

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadImageInfo(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	info, err := ReadImageInfo(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.Equal(t, 1, info.Orientation)
}

func TestReadImageInfoRejectsGarbage(t *testing.T) {
	_, err := ReadImageInfo([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestAllowedUploadExt(t *testing.T) {
	ext, ok := AllowedUploadExt("image/jpeg")
	assert.True(t, ok)
	assert.Equal(t, ".jpg", ext)

	ext, ok = AllowedUploadExt(" Image/PNG ")
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	_, ok = AllowedUploadExt("image/gif")
	assert.False(t, ok)
	_, ok = AllowedUploadExt("application/pdf")
	assert.False(t, ok)
}

func TestIsRasterImage(t *testing.T) {
	assert.True(t, IsRasterImage("room.JPG"))
	assert.True(t, IsRasterImage("photo.webp"))
	assert.False(t, IsRasterImage("document.pdf"))
	assert.False(t, IsRasterImage("noextension"))
}
