// Package surface defines the capability contract of the text-editing
// widget the session controller drives. The production widget lives in
// the host UI; this package carries the contract, the opaque per-file
// EditState it serializes, and an in-memory reference implementation
// used by the CLI, the HTTP harness, and tests.
package surface

// Compartment names recognized by every surface implementation.
// A compartment is a reconfigurable slot in a state's configuration
// that can be swapped without rebuilding the surface.
const (
	CompartmentLanguage = "language"
	CompartmentTheme    = "theme"
)

// User event tags carried on transactions.
const (
	EventInput           = "input"
	EventDelete          = "delete"
	EventUndo            = "undo"
	EventExternalReplace = "external.replace"
)

// Extension is an opaque capability plugged into a surface state:
// language support, a theme, a keymap policy. Consumers never inspect
// extensions beyond their identity.
type Extension interface {
	// ID identifies the extension for logging and tests.
	ID() string
}

type staticExtension string

func (e staticExtension) ID() string { return string(e) }

// Static returns a marker extension with the given identity. Baseline
// state capabilities (history, fold gutter, ...) are modeled this way.
func Static(id string) Extension { return staticExtension(id) }

// Range is a selection range. Anchor and Head are byte offsets; an
// empty range (Anchor == Head) is a caret.
type Range struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

// Empty reports whether the range is a bare caret.
func (r Range) Empty() bool { return r.Anchor == r.Head }

// From returns the lower bound of the range.
func (r Range) From() int {
	if r.Head < r.Anchor {
		return r.Head
	}
	return r.Anchor
}

// To returns the upper bound of the range.
func (r Range) To() int {
	if r.Head > r.Anchor {
		return r.Head
	}
	return r.Anchor
}

// Selection is a set of ranges with one designated main range.
type Selection struct {
	Ranges []Range `json:"ranges"`
	Main   int     `json:"main"`
}

// Cursor returns a single-caret selection at pos.
func Cursor(pos int) Selection {
	return Selection{Ranges: []Range{{Anchor: pos, Head: pos}}}
}

// Primary returns the main range, or a zero caret when empty.
func (s Selection) Primary() Range {
	if s.Main >= 0 && s.Main < len(s.Ranges) {
		return s.Ranges[s.Main]
	}
	return Range{}
}

// Scroll is a viewport offset.
type Scroll struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

// Change is a single text edit: replace [From, To) with Insert.
type Change struct {
	From   int
	To     int
	Insert string
}

// Effect is a non-textual transaction payload.
type Effect struct {
	// Compartment, when non-empty, reconfigures the named compartment
	// on the installed state with Extension.
	Compartment string
	Extension   Extension

	// Editable, when non-nil, toggles the surface's editable flag.
	Editable *bool
}

// Transaction describes one state transition of the surface.
type Transaction struct {
	Changes   []Change
	Selection *Selection // nil leaves the selection mapped in place
	Effects   []Effect
	UserEvent string
}

// DocChanged reports whether the transaction edits document text.
func (tr Transaction) DocChanged() bool {
	return len(tr.Changes) > 0 || tr.UserEvent == EventUndo
}

// SelectionChanged reports whether the transaction sets a selection.
func (tr Transaction) SelectionChanged() bool { return tr.Selection != nil }

// Key is a surface-level key event.
type Key struct {
	Name  string // literal rune, or "Enter", "Backspace", "Escape", ...
	Ctrl  bool
	Alt   bool
	Meta  bool
	Shift bool
}

// IsEscape reports whether the key is the Escape key.
func (k Key) IsEscape() bool { return k.Name == "Escape" }

// IsSave reports whether the key is the save chord (mod+s).
func (k Key) IsSave() bool { return (k.Ctrl || k.Meta) && k.Name == "s" }

// Surface is the capability set the session controller requires from
// the text widget. Every call on a destroyed surface is a no-op; the
// controller relies on that to absorb asynchronous tails that outlive
// disposal.
type Surface interface {
	// InstallState swaps the displayed state wholesale.
	InstallState(st *EditState)
	// State returns the installed state, nil when none is installed.
	State() *EditState
	// Dispatch applies a transaction to the installed state and
	// notifies the transaction handler.
	Dispatch(tr Transaction)

	Content() string
	Selection() Selection
	ScrollOffset() Scroll
	// ScrollTo moves the viewport and invokes done once the move has
	// settled. done fires immediately when no movement is needed.
	ScrollTo(offset Scroll, done func())

	SetEditable(editable bool)
	// Reconfigure swaps a compartment on the installed state.
	Reconfigure(compartment string, ext Extension)
	Focus()

	// OnTransaction registers the single transaction handler.
	OnTransaction(fn func(tr Transaction))
	// OnUserScroll registers the handler for user-initiated scrolls.
	// Programmatic ScrollTo calls never reach it.
	OnUserScroll(fn func(offset Scroll))
	// AddKeyHandler prepends a key interceptor. A handler returning
	// true consumes the key before default editing behavior.
	AddKeyHandler(fn func(k Key) bool)

	Destroy()
	Destroyed() bool
}
