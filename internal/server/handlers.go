package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/codesurf-ai/codesurf/internal/editor"
	"github.com/codesurf-ai/codesurf/internal/logging"
	"github.com/codesurf-ai/codesurf/internal/store"
	"github.com/codesurf-ai/codesurf/internal/surface"
	"github.com/codesurf-ai/codesurf/internal/workspace"
)

type openDocumentRequest struct {
	Path      string `json:"path"`
	Editable  *bool  `json:"editable,omitempty"`
	AutoFocus bool   `json:"autoFocus,omitempty"`
}

type documentResponse struct {
	Path     string `json:"path"`
	Binary   bool   `json:"binary"`
	Editable bool   `json:"editable"`
}

type rangeDTO struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

type selectionDTO struct {
	Ranges []rangeDTO `json:"ranges"`
	Main   int        `json:"main"`
}

type scrollDTO struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

type editorStateResponse struct {
	Path      string       `json:"path,omitempty"`
	Content   string       `json:"content"`
	Selection selectionDTO `json:"selection"`
	Scroll    scrollDTO    `json:"scroll"`
	Editable  bool         `json:"editable"`
	Focused   bool         `json:"focused"`
	Advisory  string       `json:"advisory"`
}

// openDocument loads a file from the workspace and makes it the
// active document.
func (s *Server) openDocument(w http.ResponseWriter, r *http.Request) {
	var req openDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "path required")
		return
	}

	abs := req.Path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.deps.Workspace.Root, abs)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	binary := isBinary(data)
	doc := &editor.Document{
		Path:    abs,
		Content: string(data),
		Binary:  binary,
	}
	if sc, ok := s.storedScroll(abs); ok {
		doc.Scroll = sc
	}

	editable := s.deps.AppConfig.EffectiveEditable()
	if req.Editable != nil {
		editable = *req.Editable
	}

	s.deps.Controller.SetDocument(doc, editable, req.AutoFocus)

	if s.deps.Watcher != nil && !binary {
		if err := s.deps.Watcher.Watch(abs); err != nil {
			log := logging.Component("server")
			log.Warn().Err(err).Str("path", abs).Msg("watch failed")
		}
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Path:     abs,
		Binary:   binary,
		Editable: s.deps.Controller.Editable(),
	})
}

// closeDocument clears the active document. Cached state survives.
func (s *Server) closeDocument(w http.ResponseWriter, r *http.Request) {
	s.rememberLayout()
	s.deps.Controller.SetDocument(nil, false, false)
	writeSuccess(w)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc := s.deps.Controller.Active()
	if doc == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no active document")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		Path:     doc.Path,
		Binary:   doc.Binary,
		Editable: s.deps.Controller.Editable(),
	})
}

func (s *Server) listCached(w http.ResponseWriter, r *http.Request) {
	paths := s.deps.Controller.CachedPaths()
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"paths": paths})
}

func (s *Server) getEditorState(w http.ResponseWriter, r *http.Request) {
	surf := s.deps.Surface
	sel := surf.Selection()

	resp := editorStateResponse{
		Content:  surf.Content(),
		Editable: surf.Editable(),
		Focused:  surf.Focused(),
		Advisory: advisoryName(s.deps.Controller.Advisory().State()),
		Selection: selectionDTO{
			Ranges: make([]rangeDTO, 0, len(sel.Ranges)),
			Main:   sel.Main,
		},
	}
	for _, rg := range sel.Ranges {
		resp.Selection.Ranges = append(resp.Selection.Ranges, rangeDTO{Anchor: rg.Anchor, Head: rg.Head})
	}
	off := surf.ScrollOffset()
	resp.Scroll = scrollDTO{Top: off.Top, Left: off.Left}
	if doc := s.deps.Controller.Active(); doc != nil {
		resp.Path = doc.Path
	}

	writeJSON(w, http.StatusOK, resp)
}

type keyRequest struct {
	Name  string `json:"name"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// sendKey feeds one keystroke through the editor key pipeline.
func (s *Server) sendKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "key name required")
		return
	}

	consumed := s.deps.Surface.HandleKey(surface.Key{
		Name:  req.Name,
		Ctrl:  req.Ctrl,
		Alt:   req.Alt,
		Meta:  req.Meta,
		Shift: req.Shift,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"consumed": consumed})
}

// sendScroll reports a user scroll of the viewport.
func (s *Server) sendScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	s.deps.Surface.UserScroll(surface.Scroll{Top: req.Top, Left: req.Left})
	writeSuccess(w)
}

type updateEditorRequest struct {
	Theme    *string `json:"theme,omitempty"`
	Editable *bool   `json:"editable,omitempty"`
}

func (s *Server) updateEditor(w http.ResponseWriter, r *http.Request) {
	var req updateEditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Theme != nil {
		s.deps.Controller.SetTheme(*req.Theme)
	}
	if req.Editable != nil {
		s.deps.Controller.SetEditable(*req.Editable)
	}
	writeSuccess(w)
}

type sessionResponse struct {
	SessionID string `json:"sessionID"`
	Workspace string `json:"workspace"`
	Root      string `json:"root"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: s.deps.Controller.SessionID(),
		Workspace: s.deps.Workspace.ID,
		Root:      s.deps.Workspace.Root,
	})
}

// resetSession starts a fresh session: new identifier, empty state
// cache, forgotten layout.
func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id := workspace.NewSessionID()
	s.deps.Controller.ResetSession(id)
	if err := s.deps.Workspace.ClearLayout(); err != nil {
		log := logging.Component("server")
		log.Warn().Err(err).Msg("layout clear failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionID": id})
}

type configResponse struct {
	Theme            string   `json:"theme"`
	TabSize          int      `json:"tabSize"`
	Editable         bool     `json:"editable"`
	DebounceChangeMs int      `json:"debounceChangeMs"`
	DebounceScrollMs int      `json:"debounceScrollMs"`
	WatchFiles       bool     `json:"watchFiles"`
	Themes           []string `json:"themes"`
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.AppConfig
	writeJSON(w, http.StatusOK, configResponse{
		Theme:            cfg.EffectiveTheme(),
		TabSize:          cfg.EffectiveTabSize(),
		Editable:         cfg.EffectiveEditable(),
		DebounceChangeMs: cfg.EffectiveDebounceChangeMs(),
		DebounceScrollMs: cfg.EffectiveDebounceScrollMs(),
		WatchFiles:       cfg.EffectiveWatchFiles(),
		Themes:           s.deps.Themes.Names(),
	})
}

func (s *Server) listThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"themes": s.deps.Themes.Names()})
}

// storedScroll looks up the persisted layout scroll for a path.
func (s *Server) storedScroll(path string) (*surface.Scroll, bool) {
	l, err := s.deps.Workspace.LoadLayout()
	if err != nil {
		if err != store.ErrNotFound {
			log := logging.Component("server")
			log.Warn().Err(err).Msg("layout load failed")
		}
		return nil, false
	}
	if l.Path != path {
		return nil, false
	}
	return &surface.Scroll{Top: l.ScrollTop, Left: l.ScrollLeft}, true
}

// rememberLayout persists the active document and scroll offset.
func (s *Server) rememberLayout() {
	doc := s.deps.Controller.Active()
	if doc == nil || doc.Binary {
		return
	}
	off := s.deps.Surface.ScrollOffset()
	err := s.deps.Workspace.SaveLayout(workspace.Layout{
		Path:       doc.Path,
		ScrollTop:  off.Top,
		ScrollLeft: off.Left,
	})
	if err != nil {
		log := logging.Component("server")
		log.Warn().Err(err).Msg("layout save failed")
	}
}

func advisoryName(st editor.AdvisoryState) string {
	if st == editor.AdvisoryShown {
		return "shown"
	}
	return "hidden"
}

// isBinary reports whether content looks like a non-text file.
func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return false
		}
	}
	return true
}
