package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesurf-ai/codesurf/internal/event"
	"github.com/codesurf-ai/codesurf/internal/language"
	"github.com/codesurf-ai/codesurf/internal/surface"
	"github.com/codesurf-ai/codesurf/internal/theme"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
	scrolls []surface.Scroll
	saves   []time.Time
}

func (r *changeRecorder) onChange(ch Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *changeRecorder) onScroll(s surface.Scroll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls = append(r.scrolls, s)
}

func (r *changeRecorder) onSave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, time.Now())
}

func (r *changeRecorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *changeRecorder) lastChange() Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

func (r *changeRecorder) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *changeRecorder) scrollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scrolls)
}

func newTestController(t *testing.T, rec *changeRecorder) (*Controller, *surface.Memory) {
	t.Helper()

	themes, err := theme.NewProvider(theme.Settings{})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.DebounceChange = 30 * time.Millisecond
	opts.DebounceScroll = 20 * time.Millisecond
	if rec != nil {
		opts.OnChange = rec.onChange
		opts.OnScroll = rec.onScroll
		opts.OnSave = rec.onSave
	}

	surf := surface.NewMemory()
	c := New(surf, language.NewRegistry(), themes, nil, opts)
	t.Cleanup(c.Dispose)
	return c, surf
}

func typeText(surf *surface.Memory, text string) {
	for _, r := range text {
		surf.HandleKey(surface.Key{Name: string(r)})
	}
}

func waitForLanguage(t *testing.T, c *Controller, path string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		st := c.CachedState(path)
		return st != nil && st.Compartment(surface.CompartmentLanguage) != nil
	}, time.Second, 5*time.Millisecond)
}

func TestController_CacheReuseByIdentity(t *testing.T) {
	c, surf := newTestController(t, nil)

	doc := &Document{Path: "a.ts", Content: "let x=1"}
	c.SetDocument(doc, true, false)
	first := surf.State()
	require.NotNil(t, first)
	require.Same(t, first, c.CachedState("a.ts"))

	c.SetDocument(&Document{Path: "b.ts", Content: ""}, true, false)
	require.NotSame(t, first, surf.State())

	c.SetDocument(doc, true, false)
	assert.Same(t, first, surf.State(), "revisit reuses the same state object")
}

func TestController_EditPreservedAcrossSwitch(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "let x=1"}, true, false)
	// Move the caret to the end and replace the final rune.
	surf.Dispatch(surface.Transaction{Selection: &surface.Selection{Ranges: []surface.Range{{Anchor: 7, Head: 7}}}})
	surf.HandleKey(surface.Key{Name: "Backspace"})
	surf.HandleKey(surface.Key{Name: "2"})
	require.Equal(t, "let x=2", surf.Content())

	c.SetDocument(&Document{Path: "b.ts", Content: ""}, true, false)
	require.Equal(t, "", surf.Content())

	// Host re-presents the original, unchanged file content.
	c.SetDocument(&Document{Path: "a.ts", Content: "let x=1"}, true, false)
	assert.Equal(t, "let x=2", surf.Content(), "unsaved edit survives the round trip")
}

func TestController_ExternalChangeRefreshesCache(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	refreshed := make(chan event.Event, 1)
	bus.Subscribe(event.FileRefreshed, func(e event.Event) { refreshed <- e })

	themes, err := theme.NewProvider(theme.Settings{})
	require.NoError(t, err)
	surf := surface.NewMemory()
	c := New(surf, language.NewRegistry(), themes, bus, DefaultOptions())
	defer c.Dispose()

	c.SetDocument(&Document{Path: "a.go", Content: "one\n"}, true, false)
	st := surf.State()

	// The file changed on disk while another path was active.
	c.SetDocument(&Document{Path: "b.go", Content: ""}, true, false)
	c.SetDocument(&Document{Path: "a.go", Content: "one\ntwo\n"}, true, false)

	assert.Same(t, st, surf.State(), "refresh replaces content, not the state object")
	assert.Equal(t, "one\ntwo\n", surf.Content())

	select {
	case e := <-refreshed:
		data := e.Data.(event.RefreshData)
		assert.Equal(t, "a.go", data.Path)
		assert.Equal(t, 1, data.Additions)
		assert.Equal(t, 0, data.Deletions)
	case <-time.After(time.Second):
		t.Fatal("no refresh event")
	}
}

func TestController_IsolationBetweenPaths(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "b.py", Content: "untouched"}, true, false)
	c.SetDocument(&Document{Path: "a.py", Content: ""}, true, false)

	typeText(surf, "mutate")

	assert.Equal(t, "untouched", c.CachedState("b.py").Content())
	assert.Equal(t, "mutate", c.CachedState("a.py").Content())
}

func TestController_BinaryShortCircuit(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "text"}, true, false)
	textState := surf.State()

	c.SetDocument(&Document{Path: "logo.png", Binary: true}, true, false)

	assert.Nil(t, c.CachedState("logo.png"), "binary paths never get session state")
	assert.Same(t, textState, surf.State(), "surface left untouched for the placeholder")
	assert.False(t, c.Editable())

	active := c.Active()
	require.NotNil(t, active)
	assert.True(t, active.Binary)
}

func TestController_EmptyPathWarnsAndProceeds(t *testing.T) {
	c, surf := newTestController(t, nil)

	assert.NotPanics(t, func() {
		c.SetDocument(&Document{Path: "", Content: "pending"}, true, false)
	})
	assert.Empty(t, c.CachedPaths())
	assert.Equal(t, "", surf.Content(), "best-effort empty display")
	assert.Nil(t, c.Active())
}

func TestController_NilDocumentClears(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "text"}, true, false)
	surf.UserScroll(surface.Scroll{Top: 100})

	c.SetDocument(nil, true, false)

	assert.Equal(t, "", surf.Content())
	assert.Equal(t, surface.Scroll{}, surf.ScrollOffset())
	assert.Contains(t, c.CachedPaths(), "a.ts", "cache untouched by the nothing-open state")
}

func TestController_DebounceCollapsesBurst(t *testing.T) {
	rec := &changeRecorder{}
	c, surf := newTestController(t, rec)

	c.SetDocument(&Document{Path: "a.ts", Content: ""}, true, false)
	typeText(surf, "0123456789")

	assert.Eventually(t, func() bool { return rec.changeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "0123456789", rec.lastChange().Content, "emission carries the last edit")

	// No trailing emissions sneak out.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, rec.changeCount())
}

func TestController_SaveIsNeverDebounced(t *testing.T) {
	rec := &changeRecorder{}
	c, surf := newTestController(t, rec)

	c.SetDocument(&Document{Path: "a.ts", Content: ""}, true, false)
	surf.HandleKey(surface.Key{Name: "x"})
	surf.HandleKey(surface.Key{Name: "s", Ctrl: true})

	assert.Equal(t, 1, rec.saveCount(), "save fires synchronously")
	assert.Zero(t, rec.changeCount(), "the debounced change is still pending")

	assert.Eventually(t, func() bool { return rec.changeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestController_ScrollEmission(t *testing.T) {
	rec := &changeRecorder{}
	c, surf := newTestController(t, rec)

	c.SetDocument(&Document{Path: "a.ts", Content: "text", Scroll: &surface.Scroll{Top: 50}}, true, false)

	// Programmatic restoration settles without emitting.
	assert.Eventually(t, func() bool {
		return surf.ScrollOffset() == surface.Scroll{Top: 50}
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.scrollCount())

	surf.UserScroll(surface.Scroll{Top: 10})
	surf.UserScroll(surface.Scroll{Top: 20})

	assert.Eventually(t, func() bool { return rec.scrollCount() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, surface.Scroll{Top: 20}, rec.scrolls[0])
}

func TestController_LanguageAndThemeAttachment(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "src/main.ts", Content: ""}, true, false)
	waitForLanguage(t, c, "src/main.ts")

	st := c.CachedState("src/main.ts")
	assert.Equal(t, "lang.typescript", st.Compartment(surface.CompartmentLanguage).ID())

	assert.Eventually(t, func() bool {
		themeExt := surf.State().Compartment(surface.CompartmentTheme)
		return themeExt != nil && themeExt.ID() == "theme.dark"
	}, time.Second, 5*time.Millisecond)
}

func TestController_UnknownLanguageIsPlainText(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "notes.xyz", Content: "plain"}, true, false)

	// The async tail still applies the theme; language stays empty.
	assert.Eventually(t, func() bool {
		return surf.State().Compartment(surface.CompartmentTheme) != nil
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.CachedState("notes.xyz").Compartment(surface.CompartmentLanguage))
}

func TestController_AutoFocusAfterScrollRestore(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "text", Scroll: &surface.Scroll{Top: 25}}, true, true)

	assert.Eventually(t, func() bool {
		return surf.Focused() && surf.ScrollOffset() == surface.Scroll{Top: 25}
	}, time.Second, 5*time.Millisecond)
}

func TestController_ReadOnlyAdvisory(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "streamed"}, false, false)
	require.False(t, c.Editable())

	surf.HandleKey(surface.Key{Name: "x"})
	assert.Equal(t, AdvisoryShown, c.Advisory().State())
	assert.Equal(t, "streamed", surf.Content(), "locked surface rejects the edit")

	surf.HandleKey(surface.Key{Name: "Escape"})
	assert.Equal(t, AdvisoryHidden, c.Advisory().State())

	surf.HandleKey(surface.Key{Name: "y"})
	require.Equal(t, AdvisoryShown, c.Advisory().State())

	c.SetEditable(true)
	assert.Equal(t, AdvisoryHidden, c.Advisory().State(), "unlock force-hides")
}

func TestController_ResetSessionDiscardsCache(t *testing.T) {
	c, surf := newTestController(t, nil)

	c.SetDocument(&Document{Path: "a.ts", Content: "alpha"}, true, false)
	first := surf.State()
	c.ResetSession("ws-2")

	assert.Empty(t, c.CachedPaths())
	assert.Equal(t, "ws-2", c.SessionID())
	assert.Equal(t, "alpha", surf.Content(), "live surface untouched until next SetDocument")

	c.SetDocument(&Document{Path: "a.ts", Content: "alpha"}, true, false)
	assert.NotSame(t, first, surf.State(), "new session, new state")
}

func TestController_DisposeDropsPendingEmissions(t *testing.T) {
	rec := &changeRecorder{}

	themes, err := theme.NewProvider(theme.Settings{})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.DebounceChange = 30 * time.Millisecond
	opts.OnChange = rec.onChange
	surf := surface.NewMemory()
	c := New(surf, language.NewRegistry(), themes, nil, opts)

	c.SetDocument(&Document{Path: "a.ts", Content: ""}, true, false)
	surf.HandleKey(surface.Key{Name: "x"})
	c.Dispose()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, rec.changeCount(), "nothing fires after disposal")
	assert.True(t, surf.Destroyed())

	assert.NotPanics(t, func() {
		c.SetDocument(&Document{Path: "b.ts", Content: ""}, true, false)
		c.ResetSession("late")
		c.Dispose()
	})
}

func TestController_ChangeEmissionCarriesSelection(t *testing.T) {
	rec := &changeRecorder{}
	c, surf := newTestController(t, rec)

	c.SetDocument(&Document{Path: "a.ts", Content: ""}, true, false)
	typeText(surf, "ab")

	assert.Eventually(t, func() bool { return rec.changeCount() == 1 }, time.Second, 5*time.Millisecond)
	ch := rec.lastChange()
	assert.Equal(t, "ab", ch.Content)
	assert.Equal(t, 2, ch.Selection.Primary().Head)
}

func TestController_LateLanguageAttachDuringTyping(t *testing.T) {
	themes, err := theme.NewProvider(theme.Settings{})
	require.NoError(t, err)

	reg := language.NewRegistry()
	reg.SetFallback(func(ctx context.Context, path string) (surface.Extension, error) {
		time.Sleep(10 * time.Millisecond)
		return surface.Static("lang.custom"), nil
	})

	surf := surface.NewMemory()
	c := New(surf, reg, themes, nil, DefaultOptions())
	t.Cleanup(c.Dispose)

	c.SetDocument(&Document{Path: "file.zzz", Content: ""}, true, false)

	// Resolution is still in flight while the user types; the attach
	// lands on a state that is mutating under keystrokes.
	for i := 0; i < 200; i++ {
		surf.HandleKey(surface.Key{Name: "x"})
	}

	assert.Eventually(t, func() bool {
		ext := surf.State().Compartment(surface.CompartmentLanguage)
		return ext != nil && ext.ID() == "lang.custom"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, strings.Repeat("x", 200), surf.Content())
}

func TestController_ConcurrentSwitchesStayIsolated(t *testing.T) {
	c, _ := newTestController(t, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.SetDocument(&Document{Path: "a.md", Content: fmt.Sprintf("alpha %d", i)}, true, false)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.SetDocument(&Document{Path: "b.md", Content: fmt.Sprintf("beta %d", i)}, true, false)
		}
	}()
	wg.Wait()

	// Every iteration diverges from the last load, so each switch runs
	// the external replace; contents must never cross paths.
	assert.Contains(t, c.CachedState("a.md").Content(), "alpha")
	assert.Contains(t, c.CachedState("b.md").Content(), "beta")
}
