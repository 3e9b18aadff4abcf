package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canvasImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetRGBA(10, 10, color.RGBA{R: 255, A: 255})
	return img
}

func TestPNG(t *testing.T) {
	var buf bytes.Buffer
	img := canvasImage()
	require.NoError(t, PNG(&buf, img))
	got, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
	r, _, _, _ := got.At(10, 10).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, canvasImage()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "/Subtype /Image")
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"board.png", "board.PDF"} {
		path := filepath.Join(dir, name)
		require.NoError(t, ToFile(path, canvasImage()))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Error(t, ToFile(filepath.Join(dir, "board.gif"), canvasImage()))
}
