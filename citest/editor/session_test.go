package editor_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codesurf-ai/codesurf/internal/editor"
	"github.com/codesurf-ai/codesurf/internal/event"
	"github.com/codesurf-ai/codesurf/internal/language"
	"github.com/codesurf-ai/codesurf/internal/surface"
	"github.com/codesurf-ai/codesurf/internal/theme"
	"github.com/codesurf-ai/codesurf/internal/workspace"
)

// eventSink records bus traffic for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *eventSink) record(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) count(t event.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (s *eventSink) last(t event.Type) (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == t {
			return s.events[i], true
		}
	}
	return event.Event{}, false
}

var _ = Describe("Editing Session", func() {
	var (
		ctrl  *editor.Controller
		surf  *surface.Memory
		bus   *event.Bus
		sink  *eventSink
		saves int
	)

	typeKeys := func(keys ...surface.Key) {
		for _, k := range keys {
			surf.HandleKey(k)
		}
	}

	typeText := func(text string) {
		for _, r := range text {
			surf.HandleKey(surface.Key{Name: string(r)})
		}
	}

	BeforeEach(func() {
		themes, err := theme.NewProvider(theme.Settings{})
		Expect(err).NotTo(HaveOccurred())

		bus = event.NewBus()
		sink = &eventSink{}
		bus.SubscribeAll(sink.record)

		saves = 0
		opts := editor.DefaultOptions()
		opts.DebounceChange = 30 * time.Millisecond
		opts.DebounceScroll = 20 * time.Millisecond
		opts.OnSave = func() { saves++ }

		surf = surface.NewMemory()
		ctrl = editor.New(surf, language.NewRegistry(), themes, bus, opts)
		ctrl.ResetSession(workspace.NewSessionID())
	})

	AfterEach(func() {
		ctrl.Dispose()
		bus.Close()
	})

	Describe("document switching", func() {
		It("preserves unsaved edits across a round trip", func() {
			ctrl.SetDocument(&editor.Document{Path: "a.ts", Content: "let x = 1"}, true, false)
			edited := surf.State()

			surf.Dispatch(surface.Transaction{Selection: &surface.Selection{
				Ranges: []surface.Range{{Anchor: 9, Head: 9}},
			}})
			typeKeys(surface.Key{Name: "Backspace"})
			typeText("2")
			Expect(surf.Content()).To(Equal("let x = 2"))

			ctrl.SetDocument(&editor.Document{Path: "b.ts", Content: "other"}, true, false)
			Expect(surf.Content()).To(Equal("other"))

			// Host re-sends the original on-disk content.
			ctrl.SetDocument(&editor.Document{Path: "a.ts", Content: "let x = 1"}, true, false)
			Expect(surf.State()).To(BeIdenticalTo(edited))
			Expect(surf.Content()).To(Equal("let x = 2"))
		})

		It("replaces state when the file changed outside the session", func() {
			ctrl.SetDocument(&editor.Document{Path: "a.go", Content: "package a\n"}, true, false)
			ctrl.SetDocument(&editor.Document{Path: "b.go", Content: "package b\n"}, true, false)

			ctrl.SetDocument(&editor.Document{Path: "a.go", Content: "package a\n\nfunc A() {}\n"}, true, false)
			Expect(surf.Content()).To(Equal("package a\n\nfunc A() {}\n"))

			Eventually(func() int {
				return sink.count(event.FileRefreshed)
			}).Should(Equal(1))

			e, ok := sink.last(event.FileRefreshed)
			Expect(ok).To(BeTrue())
			Expect(e.Data.(event.RefreshData).Additions).To(BeNumerically(">", 0))
		})

		It("restores scroll position on revisit", func() {
			ctrl.SetDocument(&editor.Document{Path: "long.md", Content: "# doc"}, true, false)
			surf.UserScroll(surface.Scroll{Top: 300})

			ctrl.SetDocument(&editor.Document{Path: "other.md", Content: ""}, true, false)
			Expect(surf.ScrollOffset().Top).To(BeZero())

			ctrl.SetDocument(&editor.Document{Path: "long.md", Content: "# doc"}, true, false)
			Eventually(func() int {
				return surf.ScrollOffset().Top
			}).Should(Equal(300))
		})

		It("attaches language support asynchronously", func() {
			ctrl.SetDocument(&editor.Document{Path: "src/app.tsx", Content: "export {}"}, true, false)

			Eventually(func() string {
				ext := surf.State().Compartment(surface.CompartmentLanguage)
				if ext == nil {
					return ""
				}
				return ext.ID()
			}).Should(Equal("lang.typescript"))
		})

		It("leaves the surface untouched for binary documents", func() {
			ctrl.SetDocument(&editor.Document{Path: "a.txt", Content: "text"}, true, false)
			ctrl.SetDocument(&editor.Document{Path: "img.png", Content: "\x89PNG", Binary: true}, true, false)

			Expect(surf.Content()).To(Equal("text"))
			Expect(ctrl.Editable()).To(BeFalse())
			Expect(ctrl.CachedPaths()).NotTo(ContainElement("img.png"))
		})
	})

	Describe("notifications", func() {
		It("collapses bursts of edits into one change event", func() {
			ctrl.SetDocument(&editor.Document{Path: "n.txt", Content: ""}, true, false)
			typeText("hello")

			Eventually(func() int {
				return sink.count(event.EditorChange)
			}).Should(Equal(1))
			Consistently(func() int {
				return sink.count(event.EditorChange)
			}, 150*time.Millisecond).Should(Equal(1))

			e, _ := sink.last(event.EditorChange)
			Expect(e.Data.(event.ChangeData).Content).To(Equal("hello"))
		})

		It("emits only user scrolls, debounced to the last offset", func() {
			ctrl.SetDocument(&editor.Document{Path: "s.txt", Content: "x"}, true, false)

			surf.UserScroll(surface.Scroll{Top: 10})
			surf.UserScroll(surface.Scroll{Top: 20})
			surf.UserScroll(surface.Scroll{Top: 30})

			Eventually(func() int {
				return sink.count(event.EditorScroll)
			}).Should(Equal(1))

			e, _ := sink.last(event.EditorScroll)
			Expect(e.Data.(event.ScrollData).Top).To(Equal(30))
		})

		It("intercepts the save chord synchronously", func() {
			ctrl.SetDocument(&editor.Document{Path: "save.txt", Content: "v"}, true, false)

			consumed := surf.HandleKey(surface.Key{Name: "s", Ctrl: true})
			Expect(consumed).To(BeTrue())
			Expect(saves).To(Equal(1))
			Expect(sink.count(event.EditorSave)).To(Equal(1))
			Expect(surf.Content()).To(Equal("v"), "chord must not insert text")
		})
	})

	Describe("read-only sessions", func() {
		It("blocks edits and walks the advisory state machine", func() {
			ctrl.SetDocument(&editor.Document{Path: "ro.txt", Content: "frozen"}, false, false)

			typeText("a")
			Expect(surf.Content()).To(Equal("frozen"))
			Expect(ctrl.Advisory().State()).To(Equal(editor.AdvisoryShown))
			Eventually(func() int {
				return sink.count(event.AdvisoryShown)
			}).Should(Equal(1))

			typeKeys(surface.Key{Name: "Escape"})
			Expect(ctrl.Advisory().State()).To(Equal(editor.AdvisoryHidden))

			ctrl.SetEditable(true)
			surf.Dispatch(surface.Transaction{Selection: &surface.Selection{
				Ranges: []surface.Range{{Anchor: 6, Head: 6}},
			}})
			typeText("!")
			Expect(surf.Content()).To(Equal("frozen!"))
		})
	})

	Describe("session reset", func() {
		It("drops cached states but keeps the surface alive", func() {
			ctrl.SetDocument(&editor.Document{Path: "a.txt", Content: "a"}, true, false)
			ctrl.SetDocument(&editor.Document{Path: "b.txt", Content: "b"}, true, false)
			Expect(ctrl.CachedPaths()).To(HaveLen(2))

			ctrl.ResetSession(workspace.NewSessionID())
			Expect(ctrl.CachedPaths()).To(BeEmpty())

			ctrl.SetDocument(&editor.Document{Path: "a.txt", Content: "a"}, true, false)
			Expect(surf.Content()).To(Equal("a"))
		})
	})
})
