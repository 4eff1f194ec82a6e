package editor

import "github.com/codesurf-ai/codesurf/internal/surface"

// Document describes what the surface should show. Identity is Path:
// two documents with the same path are the same logical file across
// time. The zero Path is the "no document" sentinel and never receives
// session state.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Binary  bool   `json:"binary"`
	// Scroll, when set, is the viewport offset to restore once the
	// document is installed.
	Scroll *surface.Scroll `json:"scroll,omitempty"`
}

func (d *Document) clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Scroll != nil {
		s := *d.Scroll
		cp.Scroll = &s
	}
	return &cp
}
