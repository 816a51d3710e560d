package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"hotelmap/internal/domain"
)

const (
	DefaultPreviewWidth = 1024
	blankAspect         = 0.625 // height/width when the floor has no raster image
	markerRadius        = 7.0
)

// RenderPreview draws the floor plan with its connections and markers
// into a PNG no wider than maxWidth. Floors without a raster image get a
// plain canvas.
func RenderPreview(f *domain.Floor, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultPreviewWidth
	}

	var bg image.Image
	if f.HasImage() {
		if img, err := Decode(*f.FloorPlanURL); err == nil {
			bg = img
		}
	}

	w, h := maxWidth, int(float64(maxWidth)*blankAspect)
	scale := 1.0
	if bg != nil {
		b := bg.Bounds()
		w, h = b.Dx(), b.Dy()
		if w > maxWidth {
			scale = float64(maxWidth) / float64(w)
			w, h = maxWidth, int(float64(h)*scale)
		}
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("preview size %dx%d is empty", w, h)
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(0.96, 0.96, 0.96)
	dc.Clear()
	if bg != nil {
		dc.Push()
		dc.Scale(scale, scale)
		dc.DrawImage(bg, 0, 0)
		dc.Pop()
	}

	at := func(m domain.Marker) (float64, float64) {
		return m.X / 100 * float64(w), m.Y / 100 * float64(h)
	}

	dc.SetRGBA(0.15, 0.39, 0.92, 0.8)
	dc.SetLineWidth(3)
	for _, c := range f.Connections {
		ai, bi := f.MarkerIndex(c[0]), f.MarkerIndex(c[1])
		if ai < 0 || bi < 0 {
			continue
		}
		x1, y1 := at(f.Markers[ai])
		x2, y2 := at(f.Markers[bi])
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	dc.SetFontFace(basicfont.Face7x13)
	for _, m := range f.Markers {
		x, y := at(m)
		dc.SetRGB(0.86, 0.15, 0.15)
		dc.DrawCircle(x, y, markerRadius)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawCircle(x, y, markerRadius/2)
		dc.Fill()
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(m.Name, x, y-markerRadius-4, 0.5, 0)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
