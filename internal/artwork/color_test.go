package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// solidPNG renders a single-color image.
func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAccentColorFromServedArtwork(t *testing.T) {
	red := solidPNG(t, color.RGBA{R: 200, G: 20, B: 20, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(red)
	}))
	defer server.Close()

	e := NewExtractor(testLogger())
	got := e.AccentColor(context.Background(), server.URL, DefaultAccent)

	hue, sat, _ := got.Hsv()
	if sat < 0.5 {
		t.Errorf("accent not saturated: %+v", got)
	}
	if hue > 30 && hue < 330 {
		t.Errorf("accent hue = %f, want near red", hue)
	}
}

func TestAccentColorFromLocalFile(t *testing.T) {
	blue := solidPNG(t, color.RGBA{R: 20, G: 40, B: 220, A: 255})
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, blue, 0644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(testLogger())
	got := e.AccentColor(context.Background(), path, DefaultAccent)

	hue, _, _ := got.Hsv()
	if hue < 200 || hue > 260 {
		t.Errorf("accent hue = %f, want near blue", hue)
	}
}

func TestAccentColorFallsBack(t *testing.T) {
	e := NewExtractor(testLogger())

	tests := []struct {
		name string
		ref  string
	}{
		{name: "empty reference", ref: ""},
		{name: "missing file", ref: "/nonexistent/cover.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.AccentColor(context.Background(), tt.ref, DefaultAccent); got != DefaultAccent {
				t.Errorf("AccentColor = %+v, want fallback", got)
			}
		})
	}
}

func TestAccentColorGreyImageFallsBack(t *testing.T) {
	grey := solidPNG(t, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	path := filepath.Join(t.TempDir(), "grey.png")
	if err := os.WriteFile(path, grey, 0644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(testLogger())
	if got := e.AccentColor(context.Background(), path, DefaultAccent); got != DefaultAccent {
		t.Errorf("grey artwork should fall back, got %+v", got)
	}
}

func TestPrefetcher(t *testing.T) {
	payload := solidPNG(t, color.RGBA{R: 10, G: 200, B: 10, A: 255})
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(payload)
	}))
	defer server.Close()

	p := NewPrefetcher(NewCache(time.Minute), testLogger())

	p.Prefetch(server.URL)
	if !p.Cached(server.URL) {
		t.Fatal("artwork not cached after prefetch")
	}

	p.Prefetch(server.URL)
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	// Failures are silent.
	p.Prefetch("http://127.0.0.1:1/broken")
	p.Prefetch("")
}
