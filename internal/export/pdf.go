// Package export writes the composed canvas to image and document files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PNG writes img as a PNG image.
func PNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PDF writes a single-page document sized to img with img filling the
// page, one point per pixel.
func PDF(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := PNG(&buf, img); err != nil {
		return err
	}
	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	orientation := "P"
	if width > height {
		orientation = "L"
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("canvas", opts, &buf)
	p.ImageOptions("canvas", 0, 0, width, height, false, opts, 0, "")
	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ToFile picks the format from the file extension: .pdf or .png.
func ToFile(path string, img image.Image) error {
	var write func(io.Writer, image.Image) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		write = PDF
	case ".png":
		write = PNG
	default:
		return fmt.Errorf("export %s: unsupported format", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
