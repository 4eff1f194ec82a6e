package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/document", func(r chi.Router) {
		r.Post("/", s.openDocument)
		r.Delete("/", s.closeDocument)
		r.Get("/", s.getDocument)
		r.Get("/cached", s.listCached)
	})

	r.Route("/editor", func(r chi.Router) {
		r.Get("/", s.getEditorState)
		r.Post("/key", s.sendKey)
		r.Post("/scroll", s.sendScroll)
		r.Patch("/", s.updateEditor)
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Post("/reset", s.resetSession)
	})

	r.Route("/config", func(r chi.Router) {
		r.Get("/", s.getConfig)
		r.Get("/themes", s.listThemes)
	})

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
