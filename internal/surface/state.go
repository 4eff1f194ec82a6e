package surface

import "sync"

// Baseline capabilities seeded into every fresh EditState.
var baselineExtensions = []string{
	"history",
	"keymap.default",
	"autocomplete",
	"brackets.match",
	"fold.gutter",
	"gutter.linenumbers",
	"policy.tabsize",
	"field.readonly-tooltip",
	"field.editable",
}

// StateConfig carries the per-state policies fixed at creation time.
type StateConfig struct {
	// TabSize is the tab width policy, minimum 1.
	TabSize int
}

type historyEntry struct {
	content   string
	selection Selection
}

// EditState is the serialized editing state of one file: content,
// selection, scroll, undo history, and the compartment table. Callers
// outside this package treat it as opaque: they store it, install it,
// and reconfigure compartments, nothing else. All mutation is
// serialized on the state's own lock, so a compartment reconfigure may
// land concurrently with a transaction on the installed state.
type EditState struct {
	mu           sync.Mutex
	content      string
	selection    Selection
	scroll       Scroll
	compartments map[string]Extension
	tabSize      int
	undo         []historyEntry
	redo         []historyEntry
}

// NewEditState creates a state seeded with content and the baseline
// extension set.
func NewEditState(content string, cfg StateConfig) *EditState {
	tabSize := cfg.TabSize
	if tabSize < 1 {
		tabSize = 2
	}
	comps := make(map[string]Extension, len(baselineExtensions)+2)
	for _, id := range baselineExtensions {
		comps[id] = Static(id)
	}
	return &EditState{
		content:      content,
		selection:    Cursor(0),
		compartments: comps,
		tabSize:      tabSize,
	}
}

// Content returns the stored document text.
func (st *EditState) Content() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.content
}

// Selection returns the stored selection.
func (st *EditState) Selection() Selection {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.selection
}

// ScrollOffset returns the stored viewport offset.
func (st *EditState) ScrollOffset() Scroll {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.scroll
}

func (st *EditState) setScroll(offset Scroll) {
	st.mu.Lock()
	st.scroll = offset
	st.mu.Unlock()
}

// TabSize returns the tab width policy.
func (st *EditState) TabSize() int { return st.tabSize }

// Compartment returns the extension installed in the named
// compartment, nil when the slot is empty.
func (st *EditState) Compartment(name string) Extension {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.compartments[name]
}

// Reconfigure swaps the named compartment. Reconfiguring a state that
// is not currently installed is valid and takes effect the next time
// the state is installed.
func (st *EditState) Reconfigure(name string, ext Extension) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reconfigureLocked(name, ext)
}

func (st *EditState) reconfigureLocked(name string, ext Extension) {
	if ext == nil {
		delete(st.compartments, name)
		return
	}
	st.compartments[name] = ext
}

// apply mutates the state with a transaction and reports whether the
// document text changed.
func (st *EditState) apply(tr Transaction) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	docChanged := false
	if len(tr.Changes) > 0 && tr.UserEvent != EventUndo {
		st.pushUndo()
	}
	for _, ch := range tr.Changes {
		from, to := clamp(ch.From, len(st.content)), clamp(ch.To, len(st.content))
		if to < from {
			from, to = to, from
		}
		st.content = st.content[:from] + ch.Insert + st.content[to:]
		docChanged = true
		// Collapse the selection to the end of the inserted text.
		st.selection = Cursor(from + len(ch.Insert))
	}
	if tr.Selection != nil {
		st.selection = *tr.Selection
	}
	for _, ef := range tr.Effects {
		if ef.Compartment != "" {
			st.reconfigureLocked(ef.Compartment, ef.Extension)
		}
	}
	return docChanged
}

func (st *EditState) pushUndo() {
	st.undo = append(st.undo, historyEntry{content: st.content, selection: st.selection})
	st.redo = nil
}

// Undo restores the previous document snapshot and reports whether
// there was one.
func (st *EditState) Undo() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.undo) == 0 {
		return false
	}
	last := st.undo[len(st.undo)-1]
	st.undo = st.undo[:len(st.undo)-1]
	st.redo = append(st.redo, historyEntry{content: st.content, selection: st.selection})
	st.content = last.content
	st.selection = last.selection
	return true
}

// UndoDepth returns the number of undoable snapshots.
func (st *EditState) UndoDepth() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.undo)
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
