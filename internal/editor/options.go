package editor

import (
	"time"

	"github.com/codesurf-ai/codesurf/internal/surface"
)

// Change is the payload of the debounced change notification.
type Change struct {
	Selection surface.Selection `json:"selection"`
	Content   string            `json:"content"`
}

// Options configures a Controller. Start from DefaultOptions.
type Options struct {
	FontSize       int
	GutterFontSize int
	// TabSize is the tab width policy baked into fresh states,
	// minimum 1.
	TabSize int
	// Editable is the initial editable flag of the surface.
	Editable bool
	// Theme is the session-wide theme name.
	Theme string

	DebounceChange time.Duration
	DebounceScroll time.Duration

	// AutoFocusOnDocumentChange requests focus after every document
	// switch unless the SetDocument call says otherwise.
	AutoFocusOnDocumentChange bool

	// Host callbacks. OnChange and OnScroll are debounced; OnSave is
	// synchronous and never delayed.
	OnChange func(Change)
	OnScroll func(surface.Scroll)
	OnSave   func()
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TabSize:        2,
		Editable:       true,
		Theme:          "dark",
		DebounceChange: 150 * time.Millisecond,
		DebounceScroll: 100 * time.Millisecond,
	}
}

func (o Options) normalized() Options {
	if o.TabSize < 1 {
		o.TabSize = 2
	}
	if o.DebounceChange <= 0 {
		o.DebounceChange = 150 * time.Millisecond
	}
	if o.DebounceScroll <= 0 {
		o.DebounceScroll = 100 * time.Millisecond
	}
	if o.Theme == "" {
		o.Theme = "dark"
	}
	return o
}
