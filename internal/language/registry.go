// Package language resolves language-support extensions for file
// paths. Resolution is best-effort: unknown file types yield nil
// support, never an error.
package language

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"

	"github.com/codesurf-ai/codesurf/internal/surface"
)

const (
	// retryInitialInterval is the initial interval for fallback retries.
	retryInitialInterval = 200 * time.Millisecond
	// retryMaxInterval caps the fallback retry interval.
	retryMaxInterval = 2 * time.Second
	// maxRetries bounds fallback resolution attempts.
	maxRetries = 3
)

// Support is a language-support extension for one language.
type Support struct {
	lang string
}

// ID implements surface.Extension.
func (s Support) ID() string { return "lang." + s.lang }

// Language returns the language identifier.
func (s Support) Language() string { return s.lang }

// Fallback resolves support for paths the pattern table misses. It may
// fail transiently; the registry retries it with backoff.
type Fallback func(ctx context.Context, path string) (surface.Extension, error)

type patternEntry struct {
	pattern string
	lang    string
}

// Registry maps glob patterns to language support.
type Registry struct {
	mu       sync.RWMutex
	patterns []patternEntry
	fallback Fallback
}

// builtInPatterns mirrors the file types the surrounding tool ships
// support for out of the box.
func builtInPatterns() []patternEntry {
	return []patternEntry{
		{"*.{ts,tsx,js,jsx,mjs,cjs}", "typescript"},
		{"*.go", "go"},
		{"*.py", "python"},
		{"*.rs", "rust"},
		{"*.{json,jsonc}", "json"},
		{"*.{yaml,yml}", "yaml"},
		{"*.{md,markdown}", "markdown"},
		{"*.{html,htm}", "html"},
		{"*.css", "css"},
		{"*.sql", "sql"},
		{"*.sh", "shell"},
	}
}

// NewRegistry creates a registry seeded with the built-in table.
func NewRegistry() *Registry {
	return &Registry{patterns: builtInPatterns()}
}

// Add registers a custom pattern ahead of the built-ins. The pattern
// is validated eagerly.
func (r *Registry) Add(pattern, lang string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid language pattern %q", pattern)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append([]patternEntry{{pattern: pattern, lang: lang}}, r.patterns...)
	return nil
}

// SetFallback installs the fallback resolver.
func (r *Registry) SetFallback(fn Fallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Resolve returns language support for path, or nil when no language
// matches. Patterns match against the full (slash-normalized) path and
// against its base name. Fallback failures are retried with
// exponential backoff and jitter before giving up.
func (r *Registry) Resolve(ctx context.Context, path string) (surface.Extension, error) {
	if path == "" {
		return nil, nil
	}

	full := filepath.ToSlash(path)
	base := filepath.Base(full)

	r.mu.RLock()
	patterns := r.patterns
	fallback := r.fallback
	r.mu.RUnlock()

	for _, p := range patterns {
		if ok, _ := doublestar.Match(p.pattern, full); ok {
			return Support{lang: p.lang}, nil
		}
		if ok, _ := doublestar.Match(p.pattern, base); ok {
			return Support{lang: p.lang}, nil
		}
	}

	if fallback == nil {
		return nil, nil
	}

	return backoff.RetryWithData(func() (surface.Extension, error) {
		return fallback(ctx, path)
	}, newResolveBackoff(ctx))
}

// newResolveBackoff builds the retry policy for fallback resolution.
// Jitter avoids thundering resolution bursts when many documents open
// at once.
func newResolveBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.3
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}
