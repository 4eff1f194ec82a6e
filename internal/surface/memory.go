package surface

import (
	"sync"
	"unicode/utf8"
)

// Memory is the in-memory reference surface. It implements the full
// Surface contract and adds the host-side entry points a real widget
// would receive from the DOM: HandleKey, UserScroll, Undo.
type Memory struct {
	mu            sync.Mutex
	state         *EditState
	editable      bool
	focused       bool
	destroyed     bool
	onTransaction func(Transaction)
	onUserScroll  []func(Scroll)
	keyHandlers   []func(Key) bool
}

// NewMemory creates an empty, editable in-memory surface.
func NewMemory() *Memory {
	return &Memory{editable: true}
}

// InstallState swaps the displayed state wholesale.
func (m *Memory) InstallState(st *EditState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.state = st
}

// State returns the installed state.
func (m *Memory) State() *EditState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatch applies a transaction and notifies the transaction handler.
func (m *Memory) Dispatch(tr Transaction) {
	m.mu.Lock()
	if m.destroyed || m.state == nil {
		m.mu.Unlock()
		return
	}
	m.state.apply(tr)
	for _, ef := range tr.Effects {
		if ef.Editable != nil {
			m.editable = *ef.Editable
		}
	}
	notify := m.onTransaction
	m.mu.Unlock()

	if notify != nil {
		notify(tr)
	}
}

// Content returns the installed state's text, empty when none.
func (m *Memory) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return ""
	}
	return m.state.Content()
}

// Selection returns the installed state's selection.
func (m *Memory) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return Cursor(0)
	}
	return m.state.Selection()
}

// ScrollOffset returns the current viewport offset.
func (m *Memory) ScrollOffset() Scroll {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return Scroll{}
	}
	return m.state.ScrollOffset()
}

// ScrollTo moves the viewport programmatically. User-scroll handlers
// are not invoked. done fires once the move settles, immediately when
// the offset is already correct.
func (m *Memory) ScrollTo(offset Scroll, done func()) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	if m.state != nil {
		m.state.setScroll(offset)
	}
	m.mu.Unlock()

	if done != nil {
		done()
	}
}

// UserScroll simulates a user-initiated scroll of the viewport.
func (m *Memory) UserScroll(offset Scroll) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	if m.state != nil {
		m.state.setScroll(offset)
	}
	handlers := append([]func(Scroll){}, m.onUserScroll...)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(offset)
	}
}

// SetEditable toggles the read-only flag. The flag belongs to the
// surface, not to any state snapshot.
func (m *Memory) SetEditable(editable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.editable = editable
}

// Editable reports the current editable flag.
func (m *Memory) Editable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editable
}

// Reconfigure swaps a compartment on the installed state.
func (m *Memory) Reconfigure(compartment string, ext Extension) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed || m.state == nil {
		return
	}
	m.state.Reconfigure(compartment, ext)
}

// Focus gives the surface keyboard focus.
func (m *Memory) Focus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.focused = true
}

// Focused reports whether the surface holds focus.
func (m *Memory) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// OnTransaction registers the single transaction handler.
func (m *Memory) OnTransaction(fn func(Transaction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransaction = fn
}

// OnUserScroll registers a handler for user-initiated scrolls.
func (m *Memory) OnUserScroll(fn func(Scroll)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUserScroll = append(m.onUserScroll, fn)
}

// AddKeyHandler prepends a key interceptor.
func (m *Memory) AddKeyHandler(fn func(Key) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyHandlers = append([]func(Key) bool{fn}, m.keyHandlers...)
}

// HandleKey feeds a key event through the interceptor chain and, when
// unconsumed, applies default editing behavior. It reports whether the
// key had any effect.
func (m *Memory) HandleKey(k Key) bool {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return false
	}
	handlers := append([]func(Key) bool{}, m.keyHandlers...)
	editable := m.editable && m.state != nil
	var sel Selection
	if m.state != nil {
		sel = m.state.Selection()
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		if fn(k) {
			return true
		}
	}

	if !editable {
		return false
	}

	switch {
	case k.Name == "Enter":
		m.insertAt(sel, "\n")
	case k.Name == "Backspace":
		r := sel.Primary()
		from, to := r.From(), r.To()
		if r.Empty() {
			if from == 0 {
				return false
			}
			from--
		}
		m.Dispatch(Transaction{
			Changes:   []Change{{From: from, To: to}},
			UserEvent: EventDelete,
		})
	case utf8.RuneCountInString(k.Name) == 1 && !k.Ctrl && !k.Meta && !k.Alt:
		m.insertAt(sel, k.Name)
	default:
		return false
	}
	return true
}

func (m *Memory) insertAt(sel Selection, text string) {
	r := sel.Primary()
	m.Dispatch(Transaction{
		Changes:   []Change{{From: r.From(), To: r.To(), Insert: text}},
		UserEvent: EventInput,
	})
}

// Undo reverts the last document change, as the history keymap would.
func (m *Memory) Undo() bool {
	m.mu.Lock()
	if m.destroyed || m.state == nil || !m.editable {
		m.mu.Unlock()
		return false
	}
	ok := m.state.Undo()
	notify := m.onTransaction
	m.mu.Unlock()

	if ok && notify != nil {
		notify(Transaction{UserEvent: EventUndo})
	}
	return ok
}

// Destroy tears the surface down. All later calls are no-ops.
func (m *Memory) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.state = nil
	m.onTransaction = nil
	m.onUserScroll = nil
	m.keyHandlers = nil
}

// Destroyed reports whether Destroy has been called.
func (m *Memory) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

var _ Surface = (*Memory)(nil)
