// Package workspace identifies the project a session edits in and
// persists its layout between runs.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codesurf-ai/codesurf/internal/store"
)

// Layout is the remembered editor arrangement for a session: the last
// open document and its scroll offset.
type Layout struct {
	Path       string    `json:"path"`
	ScrollTop  int       `json:"scrollTop"`
	ScrollLeft int       `json:"scrollLeft"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Workspace is a project root with persisted per-session layout.
type Workspace struct {
	ID   string
	Root string

	store *store.Store
}

// Open resolves the workspace for directory. The workspace root is
// the enclosing repository root when one exists, the directory itself
// otherwise; the ID is derived from the root path.
func Open(directory string, st *store.Store) (*Workspace, error) {
	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}

	root := findRepoRoot(abs)
	if root == "" {
		root = abs
	}

	return &Workspace{
		ID:    hashPath(root),
		Root:  root,
		store: st,
	}, nil
}

// NewSessionID mints a session identifier.
func NewSessionID() string {
	return ulid.Make().String()
}

func (w *Workspace) layoutKey() []string {
	return []string{"workspaces", w.ID, "layout"}
}

// SaveLayout stores the workspace layout. Layout is keyed by
// workspace, not session, so a fresh session replays the last
// arrangement.
func (w *Workspace) SaveLayout(l Layout) error {
	l.UpdatedAt = time.Now().UTC()
	return w.store.Put(w.layoutKey(), l)
}

// LoadLayout returns the stored layout, or store.ErrNotFound when
// none was saved.
func (w *Workspace) LoadLayout() (Layout, error) {
	var l Layout
	err := w.store.Get(w.layoutKey(), &l)
	return l, err
}

// ClearLayout removes the stored layout.
func (w *Workspace) ClearLayout() error {
	return w.store.Delete(w.layoutKey())
}

// Rel returns path relative to the workspace root when it lies
// inside, the original path otherwise.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// findRepoRoot walks up from start looking for a .git entry. A .git
// file (worktree or submodule) counts as well as a directory.
func findRepoRoot(start string) string {
	current := start
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

func hashPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}
