// Package artwork derives UI accent colors from track artwork and keeps a
// best-effort prefetch cache of artwork payloads. Everything here is a UX
// enhancement: failures fall back to defaults and are never surfaced to the
// playback core.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
)

// DefaultAccent is the fallback accent color used when no artwork color can
// be extracted.
var DefaultAccent = colorful.Color{R: 0.0, G: 0.831, B: 1.0} // cyan

const (
	hueBuckets    = 12
	minSaturation = 0.25
	minValue      = 0.15
	maxValue      = 0.95
	sampleStride  = 4
)

// Extractor computes accent colors from artwork references within a bounded
// time. An artwork reference is either an http(s) URL or a local file path.
type Extractor struct {
	client *http.Client
	logger *logrus.Logger
}

// NewExtractor creates an accent-color extractor. The HTTP client timeout
// bounds how long a single extraction may take.
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: 3 * time.Second},
		logger: logger,
	}
}

// AccentColor fetches the artwork and returns its dominant saturated color,
// or fallback when the artwork is missing, unreadable or washed out.
func (e *Extractor) AccentColor(ctx context.Context, artworkRef string, fallback colorful.Color) colorful.Color {
	if artworkRef == "" {
		return fallback
	}

	data, err := fetch(ctx, e.client, artworkRef)
	if err != nil {
		e.logger.WithError(err).WithField("artwork", artworkRef).Debug("Artwork fetch failed, using fallback accent")
		return fallback
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		e.logger.WithError(err).WithField("artwork", artworkRef).Debug("Artwork decode failed, using fallback accent")
		return fallback
	}

	accent, ok := dominantColor(img)
	if !ok {
		return fallback
	}
	return accent
}

// dominantColor buckets sampled pixels by hue and averages the most populous
// bucket. Pixels that are too dark, too bright or too grey are ignored so
// the accent stays vivid.
func dominantColor(img image.Image) (colorful.Color, bool) {
	bounds := img.Bounds()

	counts := make([]int, hueBuckets)
	sums := make([]struct{ r, g, b float64 }, hueBuckets)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStride {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			hue, sat, val := c.Hsv()
			if sat < minSaturation || val < minValue || val > maxValue {
				continue
			}
			bucket := int(hue/360.0*hueBuckets) % hueBuckets
			counts[bucket]++
			sums[bucket].r += c.R
			sums[bucket].g += c.G
			sums[bucket].b += c.B
		}
	}

	best := 0
	for i := 1; i < hueBuckets; i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	if counts[best] == 0 {
		return colorful.Color{}, false
	}

	n := float64(counts[best])
	return colorful.Color{
		R: sums[best].r / n,
		G: sums[best].g / n,
		B: sums[best].b / n,
	}, true
}

// fetch loads an artwork reference from the network or the local disk.
func fetch(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artwork fetch returned %d", resp.StatusCode)
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	return os.ReadFile(ref)
}
