// Package editor owns per-file editing state across a session: the
// state cache, the active document, and the live text surface. It
// mediates document switches, enforces read-only semantics during
// external writes, and emits debounced change/scroll notifications.
package editor

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codesurf-ai/codesurf/internal/debounce"
	"github.com/codesurf-ai/codesurf/internal/event"
	"github.com/codesurf-ai/codesurf/internal/language"
	"github.com/codesurf-ai/codesurf/internal/logging"
	"github.com/codesurf-ai/codesurf/internal/surface"
	"github.com/codesurf-ai/codesurf/internal/theme"
)

type changeEmission struct {
	path   string
	change Change
}

type scrollEmission struct {
	path   string
	offset surface.Scroll
}

// Controller is the session controller. All mutation of the cache and
// the active document happens under one mutex; surface dispatches that
// re-enter the transaction hook run outside it.
type Controller struct {
	mu sync.Mutex
	// docMu serializes whole document switches. The divergence replace
	// is dispatched outside mu (the transaction hook re-enters mu), so
	// without this a concurrent switch could land the replace on the
	// other path's freshly installed state.
	docMu sync.Mutex
	surf  surface.Surface
	opts  Options
	log   zerolog.Logger

	bus       *event.Bus
	languages *language.Registry
	themes    *theme.Provider

	sessionID string
	cache     map[string]*surface.EditState
	// loaded records the source-of-truth content each path was last
	// seeded or refreshed with. A document arriving with different
	// content than this means the underlying file changed externally
	// and the cached state must be replaced; a document matching it
	// means the file is unchanged and cached edits win.
	loaded map[string]string

	active   *Document
	editable bool
	advisory *Advisory

	changeDeb *debounce.Debouncer[changeEmission]
	scrollDeb *debounce.Debouncer[scrollEmission]

	disposed bool
}

// New wires a controller to its surface and collaborators. bus may be
// nil for hosts that only use the direct callbacks.
func New(surf surface.Surface, languages *language.Registry, themes *theme.Provider, bus *event.Bus, opts Options) *Controller {
	opts = opts.normalized()

	c := &Controller{
		surf:      surf,
		opts:      opts,
		log:       logging.Component("editor"),
		bus:       bus,
		languages: languages,
		themes:    themes,
		cache:     make(map[string]*surface.EditState),
		loaded:    make(map[string]string),
		editable:  opts.Editable,
	}
	c.advisory = NewAdvisory(
		func() { c.publish(event.Event{Type: event.AdvisoryShown, Data: c.activeDocData()}) },
		func() { c.publish(event.Event{Type: event.AdvisoryHidden, Data: c.activeDocData()}) },
	)
	c.changeDeb = debounce.New(opts.DebounceChange, c.emitChange)
	c.scrollDeb = debounce.New(opts.DebounceScroll, c.emitScroll)

	surf.SetEditable(opts.Editable)
	surf.OnTransaction(c.onTransaction)
	surf.OnUserScroll(c.onUserScroll)
	surf.AddKeyHandler(c.onKey)

	return c
}

// SetDocument makes doc the active document.
//
// A nil doc clears the surface and leaves the cache alone. A binary
// doc never touches the surface or the cache; the host renders a
// placeholder instead. Otherwise the path's cached state is reused or
// lazily created, installed wholesale, refreshed if the underlying
// file changed, and the asynchronous tail (language attach, theme
// reapply, scroll restore, focus) is kicked off.
func (c *Controller) SetDocument(doc *Document, editable, autoFocus bool) {
	c.docMu.Lock()
	defer c.docMu.Unlock()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}

	if doc == nil {
		c.active = nil
		c.setEditableLocked(false)
		c.surf.InstallState(surface.NewEditState("", surface.StateConfig{TabSize: c.opts.TabSize}))
		c.mu.Unlock()

		c.surf.ScrollTo(surface.Scroll{}, nil)
		c.publish(event.Event{Type: event.DocumentClosed})
		return
	}

	doc = doc.clone()

	if doc.Binary {
		c.active = doc
		c.setEditableLocked(false)
		c.mu.Unlock()

		c.publish(event.Event{Type: event.DocumentOpened, Data: event.DocumentData{Path: doc.Path, Binary: true}})
		return
	}

	if doc.Path == "" {
		c.log.Warn().Msg("document has no path, showing empty surface without session state")
		c.active = nil
		c.setEditableLocked(false)
		c.surf.InstallState(surface.NewEditState("", surface.StateConfig{TabSize: c.opts.TabSize}))
		c.mu.Unlock()
		return
	}

	st, ok := c.cache[doc.Path]
	if !ok {
		st = surface.NewEditState(doc.Content, surface.StateConfig{TabSize: c.opts.TabSize})
		c.cache[doc.Path] = st
		c.loaded[doc.Path] = doc.Content
	}
	c.surf.InstallState(st)

	// Refresh when the source of truth moved underneath the cache, so
	// the two never silently diverge. Cached (unsaved) edits survive a
	// revisit that carries the unchanged original content.
	var replace *surface.Transaction
	var refresh *event.RefreshData
	if last, seen := c.loaded[doc.Path]; seen && last != doc.Content {
		before := c.surf.Content()
		replace = &surface.Transaction{
			Changes:   []surface.Change{{From: 0, To: len(before), Insert: doc.Content}},
			UserEvent: surface.EventExternalReplace,
		}
		adds, dels := diffStats(before, doc.Content)
		refresh = &event.RefreshData{Path: doc.Path, Additions: adds, Deletions: dels}
		c.loaded[doc.Path] = doc.Content
	}

	c.active = doc
	c.setEditableLocked(editable && !doc.Binary)
	c.mu.Unlock()

	c.advisory.SetEditable(editable && !doc.Binary)

	if replace != nil {
		c.surf.Dispatch(*replace)
		c.publish(event.Event{Type: event.FileRefreshed, Data: *refresh})
	}

	c.publish(event.Event{Type: event.DocumentOpened, Data: event.DocumentData{
		Path:     doc.Path,
		Editable: editable,
	}})

	go c.attachAndRestore(doc, st, autoFocus || c.opts.AutoFocusOnDocumentChange)
}

// attachAndRestore is the asynchronous tail of SetDocument: resolve
// and attach language support, reapply the theme (attachment may reset
// highlighting), then restore scroll and grant focus. Resolution is
// not cancelable; a stale result configures a state object that is no
// longer installed, which is harmless and self-corrects on the next
// visit to that path.
func (c *Controller) attachAndRestore(doc *Document, st *surface.EditState, focus bool) {
	ext, err := c.languages.Resolve(context.Background(), doc.Path)
	if err != nil {
		// Treated as plain text, not an error.
		c.log.Debug().Str("path", doc.Path).Err(err).Msg("language resolution unavailable")
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if ext != nil {
		st.Reconfigure(surface.CompartmentLanguage, ext)
	}
	themeEffect := c.themes.ReconfigureEffect(c.opts.Theme)
	stale := c.surf.State() != st
	surf := c.surf
	c.mu.Unlock()

	surf.Dispatch(surface.Transaction{Effects: []surface.Effect{themeEffect}})

	// A later SetDocument superseded this tail; leave its viewport
	// alone.
	if stale {
		return
	}

	// Without a host-provided offset the reinstalled state already
	// carries the offset it was left at.
	if doc.Scroll != nil && surf.ScrollOffset() != *doc.Scroll {
		surf.ScrollTo(*doc.Scroll, func() {
			if focus {
				surf.Focus()
			}
		})
	} else if focus {
		surf.Focus()
	}
}

// onTransaction is the surface's state-transition hook. Content- or
// selection-changing transactions while a document is active re-store
// the (in-place mutated) state under the active path and schedule the
// debounced change notification.
func (c *Controller) onTransaction(tr surface.Transaction) {
	if !tr.DocChanged() && !tr.SelectionChanged() {
		return
	}

	c.mu.Lock()
	if c.disposed || c.active == nil || c.active.Binary || c.active.Path == "" {
		c.mu.Unlock()
		return
	}
	path := c.active.Path
	if st := c.surf.State(); st != nil {
		// Same object by identity; re-storing documents that the
		// cache is always current.
		c.cache[path] = st
	}
	emission := changeEmission{
		path: path,
		change: Change{
			Selection: c.surf.Selection(),
			Content:   c.surf.Content(),
		},
	}
	c.mu.Unlock()

	c.changeDeb.Call(emission)
}

func (c *Controller) onUserScroll(offset surface.Scroll) {
	c.mu.Lock()
	if c.disposed || c.active == nil {
		c.mu.Unlock()
		return
	}
	path := c.active.Path
	c.mu.Unlock()

	c.scrollDeb.Call(scrollEmission{path: path, offset: offset})
}

// onKey intercepts the save chord (always consumed, fired
// synchronously) and feeds the advisory while the surface is locked.
func (c *Controller) onKey(k surface.Key) bool {
	if k.IsSave() {
		c.mu.Lock()
		active := c.active != nil
		onSave := c.opts.OnSave
		c.mu.Unlock()

		if active {
			if onSave != nil {
				onSave()
			}
			if c.bus != nil {
				c.bus.PublishSync(event.Event{Type: event.EditorSave, Data: c.activeDocData()})
			}
		}
		return true
	}

	c.mu.Lock()
	locked := !c.editable
	c.mu.Unlock()
	if locked {
		c.advisory.HandleKey(k)
	}
	return false
}

func (c *Controller) emitChange(em changeEmission) {
	c.mu.Lock()
	disposed := c.disposed
	onChange := c.opts.OnChange
	c.mu.Unlock()
	if disposed {
		return
	}

	if onChange != nil {
		onChange(em.change)
	}
	c.publish(event.Event{Type: event.EditorChange, Data: event.ChangeData{
		Path:    em.path,
		Content: em.change.Content,
	}})
}

func (c *Controller) emitScroll(em scrollEmission) {
	c.mu.Lock()
	disposed := c.disposed
	onScroll := c.opts.OnScroll
	c.mu.Unlock()
	if disposed {
		return
	}

	if onScroll != nil {
		onScroll(em.offset)
	}
	c.publish(event.Event{Type: event.EditorScroll, Data: event.ScrollData{
		Path: em.path,
		Top:  em.offset.Top,
		Left: em.offset.Left,
	}})
}

// ResetSession discards the entire cache: per-file state is only valid
// within one session. The live surface keeps its visible content until
// the next SetDocument.
func (c *Controller) ResetSession(id string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.sessionID = id
	c.cache = make(map[string]*surface.EditState)
	c.loaded = make(map[string]string)
	c.mu.Unlock()

	c.publish(event.Event{Type: event.SessionReset, Data: id})
}

// SetTheme applies a theme to the live surface immediately. Themes are
// session-wide, never part of per-file state.
func (c *Controller) SetTheme(name string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.opts.Theme = name
	effect := c.themes.ReconfigureEffect(name)
	c.mu.Unlock()

	c.surf.Dispatch(surface.Transaction{Effects: []surface.Effect{effect}})
}

// SetEditable toggles the read-only flag of the live surface. This is
// a surface property: no cached state history is forked.
func (c *Controller) SetEditable(editable bool) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.setEditableLocked(editable)
	c.mu.Unlock()

	c.advisory.SetEditable(editable)
}

// setEditableLocked updates the flag and the surface. The advisory is
// notified by the caller after the lock is released: its transition
// callbacks read controller state.
func (c *Controller) setEditableLocked(editable bool) {
	c.editable = editable
	c.surf.SetEditable(editable)
}

// Dispose tears the controller down: pending debounced notifications
// are dropped and the surface is destroyed. Asynchronous tails still
// in flight become no-ops.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.active = nil
	c.mu.Unlock()

	c.changeDeb.Stop()
	c.scrollDeb.Stop()
	c.surf.Destroy()
}

// SessionID returns the current session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Active returns a copy of the active document descriptor, nil when
// nothing is open.
func (c *Controller) Active() *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.clone()
}

// Editable reports the surface's editable flag.
func (c *Controller) Editable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editable
}

// Advisory returns the read-only advisory unit.
func (c *Controller) Advisory() *Advisory {
	return c.advisory
}

// CachedPaths lists every path with session state, in no particular
// order. The cache is never pruned while the session lives; this is
// the hook a host would build eviction on.
func (c *Controller) CachedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.cache))
	for p := range c.cache {
		paths = append(paths, p)
	}
	return paths
}

// CachedState returns the session state for path, nil when the path
// has not been visited this session.
func (c *Controller) CachedState(path string) *surface.EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[path]
}

func (c *Controller) activeDocData() event.DocumentData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return event.DocumentData{}
	}
	return event.DocumentData{
		Path:     c.active.Path,
		Binary:   c.active.Binary,
		Editable: c.editable,
	}
}

func (c *Controller) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// diffStats counts added and deleted lines between two revisions.
func diffStats(before, after string) (additions, deletions int) {
	if before == after {
		return 0, 0
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}
	return additions, deletions
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
