// Package capture holds the server half of the screenshot capture surface.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/harrisonrobin/gsd/pkg/ai"
)

// ErrEmptyRegion is returned when the selection does not overlap the screenshot.
var ErrEmptyRegion = errors.New("selected region is empty")

// Region is a selection rectangle in CSS pixels. Scale is the device pixel ratio of the page
// the screenshot was taken from; zero means 1.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"devicePixelRatio,omitempty"`
}

func (r Region) rect() image.Rectangle {
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	px := func(v float64) int { return int(math.Round(v * scale)) }
	return image.Rect(px(r.X), px(r.Y), px(r.X+r.Width), px(r.Y+r.Height))
}

// Crop cuts region out of a screenshot data URL and returns the result as a PNG data URL.
func Crop(screenshotDataURL string, region Region) (string, error) {
	_, data, err := ai.ParseDataURL(screenshotDataURL)
	if err != nil {
		return "", err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot: %w", err)
	}

	rect := region.rect().Intersect(img.Bounds())
	if rect.Empty() {
		return "", ErrEmptyRegion
	}
	cropped := imaging.Crop(img, rect)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode cropped screenshot: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
