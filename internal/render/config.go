// Package render turns mdtree blocks into HTML fragments or styled terminal
// text.
package render

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/rendercache"
	"github.com/livefir/livemark/internal/validation"
)

// ErrNilNode is returned when asked to render a nil node
var ErrNilNode = errors.New("render: nil node")

// Theme holds the colors used by the terminal renderer
type Theme struct {
	Heading string `yaml:"heading" json:"heading" validate:"required,hexcolor"`
	Text    string `yaml:"text" json:"text" validate:"required,hexcolor"`
	Code    string `yaml:"code" json:"code" validate:"required,hexcolor"`
	Link    string `yaml:"link" json:"link" validate:"required,hexcolor"`
	Quote   string `yaml:"quote" json:"quote" validate:"required,hexcolor"`
	Muted   string `yaml:"muted" json:"muted" validate:"required,hexcolor"`
}

// Config controls how blocks are rendered. Every field takes part in the
// fingerprint, so changing any of them invalidates cached artifacts.
type Config struct {
	// Width is the wrap column of terminal output
	Width int `yaml:"width" json:"width" validate:"gte=20,lte=400"`

	// ListMarker is the bullet used for unordered lists in terminal output
	ListMarker string `yaml:"list_marker" json:"list_marker" validate:"oneof=- * +"`

	// SanitizeHTML passes raw HTML through a user content policy
	SanitizeHTML bool `yaml:"sanitize_html" json:"sanitize_html"`

	// Minify compresses HTML fragments
	Minify bool `yaml:"minify" json:"minify"`

	Theme Theme `yaml:"theme" json:"theme"`
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		Width:        80,
		ListMarker:   "-",
		SanitizeHTML: true,
		Minify:       false,
		Theme: Theme{
			Heading: "#7D56F4",
			Text:    "#DDDDDD",
			Code:    "#E5C07B",
			Link:    "#61AFEF",
			Quote:   "#98C379",
			Muted:   "#5C6370",
		},
	}
}

// Validate checks field ranges and colors
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid render config: %w", err)
	}
	return nil
}

// Fingerprint implements rendercache.Fingerprinter
func (c Config) Fingerprint() rendercache.Fingerprint {
	d := xxhash.New()
	var buf [8]byte

	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	putBool := func(v bool) {
		if v {
			putInt(1)
		} else {
			putInt(0)
		}
	}
	putString := func(s string) {
		putInt(len(s))
		_, _ = d.WriteString(s)
	}

	putInt(c.Width)
	putString(c.ListMarker)
	putBool(c.SanitizeHTML)
	putBool(c.Minify)
	for _, color := range []string{
		c.Theme.Heading, c.Theme.Text, c.Theme.Code,
		c.Theme.Link, c.Theme.Quote, c.Theme.Muted,
	} {
		putString(color)
	}
	return rendercache.Fingerprint(d.Sum64())
}

// checkHeading rejects levels the renderers cannot express
func checkHeading(h *mdtree.Heading) error {
	if h.Level < 1 || h.Level > 6 {
		return fmt.Errorf("render: heading level %d out of range", h.Level)
	}
	return nil
}
