package detection

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/anthonynsimon/bild/transform"

	"github.com/badgewipe/badgewipe/internal/imaging"
)

// Template is the canonical badge reference image used for matching.
//
// The template is expected to be a PNG at the badge's canonical size, ideally
// with transparency; multi-scale matching compensates for resolution
// differences so a single canonical template suffices. Alpha is ignored by
// the luminance-based matcher.
type Template struct {
	img *image.NRGBA

	mu     sync.Mutex
	scaled map[[2]int]*templateStats
}

// LoadTemplate decodes a template from encoded image bytes.
func LoadTemplate(data []byte) (*Template, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	b := img.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return nil, fmt.Errorf("template too small: %dx%d", b.Dx(), b.Dy())
	}
	return &Template{img: img, scaled: make(map[[2]int]*templateStats)}, nil
}

// LoadTemplateFile reads and decodes a template from disk.
func LoadTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return LoadTemplate(data)
}

// Width returns the canonical template width in pixels.
func (t *Template) Width() int { return t.img.Bounds().Dx() }

// Height returns the canonical template height in pixels.
func (t *Template) Height() int { return t.img.Bounds().Dy() }

// statsAtScale returns cached luminance statistics for the template resized
// by the given factor. Rescaling uses bilinear filtering; results are cached
// by target dimensions so repeated detections share the work.
//
// Returns nil when the scaled template would degenerate below 2x2 pixels.
func (t *Template) statsAtScale(scale float64) *templateStats {
	w := int(math.Round(float64(t.Width()) * scale))
	h := int(math.Round(float64(t.Height()) * scale))
	if w < 2 || h < 2 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	key := [2]int{w, h}
	if cached, ok := t.scaled[key]; ok {
		return cached
	}

	var scaledImg *image.NRGBA
	if w == t.Width() && h == t.Height() {
		scaledImg = t.img
	} else {
		scaledImg = imaging.Clone(transform.Resize(t.img, w, h, transform.Linear))
	}
	lum, lw, lh := imaging.Luminance(scaledImg)
	stats := newTemplateStats(lum, lw, lh)
	t.scaled[key] = stats
	return stats
}

// templateCache provides process-wide caching of templates loaded from disk,
// keyed by file path, so repeated pipeline initializations avoid redundant
// decodes. Safe for concurrent use.
type templateCache struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

var cache = &templateCache{templates: make(map[string]*Template)}

// CachedTemplate returns the template at path, loading and caching it on
// first use.
func CachedTemplate(path string) (*Template, error) {
	cache.mu.RLock()
	if t, ok := cache.templates[path]; ok {
		cache.mu.RUnlock()
		return t, nil
	}
	cache.mu.RUnlock()

	t, err := LoadTemplateFile(path)
	if err != nil {
		return nil, err
	}

	cache.mu.Lock()
	cache.templates[path] = t
	cache.mu.Unlock()
	return t, nil
}

// ClearTemplateCache drops all cached templates. The next CachedTemplate call
// reloads from disk.
func ClearTemplateCache() {
	cache.mu.Lock()
	cache.templates = make(map[string]*Template)
	cache.mu.Unlock()
}
