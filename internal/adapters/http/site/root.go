// Package site serves the small embedded landing page at the root path.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts the landing page on r.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/", NewRootHandler().HandleRoot)
}

// RootHandler serves the embedded page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET /.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
