package editor

import (
	"sync"

	"github.com/codesurf-ai/codesurf/internal/surface"
)

// AdvisoryState is the visibility of the read-only advisory.
type AdvisoryState int

const (
	// AdvisoryHidden is the resting state.
	AdvisoryHidden AdvisoryState = iota
	// AdvisoryShown renders the "can't edit now" hint at each caret.
	AdvisoryShown
)

// Advisory is the read-only hint state machine. While the surface is
// locked, any non-Escape key shows the hint and Escape hides it;
// unlocking force-hides it. The advisory never mutates document
// content.
type Advisory struct {
	mu     sync.Mutex
	state  AdvisoryState
	onShow func()
	onHide func()
}

// NewAdvisory creates a hidden advisory. The callbacks fire on state
// transitions only, never on repeated keypresses in the same state.
func NewAdvisory(onShow, onHide func()) *Advisory {
	return &Advisory{onShow: onShow, onHide: onHide}
}

// HandleKey feeds a keypress observed while the surface is locked.
func (a *Advisory) HandleKey(k surface.Key) {
	if k.IsEscape() {
		a.transition(AdvisoryHidden)
		return
	}
	a.transition(AdvisoryShown)
}

// SetEditable force-hides the advisory when the surface unlocks.
func (a *Advisory) SetEditable(editable bool) {
	if editable {
		a.transition(AdvisoryHidden)
	}
}

// State returns the current visibility.
func (a *Advisory) State() AdvisoryState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Anchors returns the render anchor for each empty selection range:
// the hint sits at every bare caret, not at range selections.
func (a *Advisory) Anchors(sel surface.Selection) []int {
	var anchors []int
	for _, r := range sel.Ranges {
		if r.Empty() {
			anchors = append(anchors, r.Head)
		}
	}
	return anchors
}

func (a *Advisory) transition(to AdvisoryState) {
	a.mu.Lock()
	if a.state == to {
		a.mu.Unlock()
		return
	}
	a.state = to
	a.mu.Unlock()

	switch to {
	case AdvisoryShown:
		if a.onShow != nil {
			a.onShow()
		}
	case AdvisoryHidden:
		if a.onHide != nil {
			a.onHide()
		}
	}
}
