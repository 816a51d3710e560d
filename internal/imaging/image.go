// Package imaging validates uploaded floor-plan images, converts them to
// and from data URLs and renders annotated floor previews.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"hotelmap/internal/domain"
)

// DefaultUploadLimit is the largest accepted floor-plan upload.
const DefaultUploadLimit = 5 << 20

// FloorImage is a validated upload ready to be stored on a floor.
type FloorImage struct {
	DataURL string `json:"dataUrl"`
	MIME    string `json:"mime"`
	Width   int    `json:"width"`  // 0 for SVG
	Height  int    `json:"height"` // 0 for SVG
	Size    int    `json:"size"`
}

// Prepare checks size and format of an uploaded image and encodes it as a
// data URL. Nothing is resized or recompressed.
func Prepare(data []byte, limit int64) (*FloorImage, error) {
	if limit <= 0 {
		limit = DefaultUploadLimit
	}
	if len(data) == 0 {
		return nil, domain.Invalid("image", "file is empty")
	}
	if int64(len(data)) > limit {
		return nil, domain.Invalid("image",
			fmt.Sprintf("file size too large (max %dMB), please compress the image first", limit>>20))
	}

	img := &FloorImage{Size: len(data)}
	if isSVG(data) {
		img.MIME = "image/svg+xml"
	} else {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, domain.Invalid("image", "please select a valid image file (JPEG, PNG, etc.)")
		}
		img.MIME = "image/" + format
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	img.DataURL = EncodeDataURL(img.MIME, data)
	return img, nil
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and bytes.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data url has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mime, data, nil
}

// Decode decodes a raster data URL. SVG is not supported.
func Decode(url string) (image.Image, error) {
	mime, data, err := ParseDataURL(url)
	if err != nil {
		return nil, err
	}
	if mime == "image/svg+xml" {
		return nil, fmt.Errorf("svg floor plans cannot be rasterized")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime, err)
	}
	return img, nil
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(string(head))
	return strings.Contains(s, "<svg")
}
