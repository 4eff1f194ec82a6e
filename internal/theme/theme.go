// Package theme provides the theme extensions applied to the live
// surface. Themes are session-wide: they never belong to per-file
// cached state.
package theme

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/codesurf-ai/codesurf/internal/surface"
)

//go:embed themes.yaml
var defaultThemes []byte

// DefaultName is the theme used when an unknown name is requested.
const DefaultName = "dark"

// Palette is one named color scheme.
type Palette struct {
	Name       string `yaml:"name"`
	Dark       bool   `yaml:"dark"`
	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
	Accent     string `yaml:"accent"`
	Selection  string `yaml:"selection"`
	Caret      string `yaml:"caret"`
}

// Settings carries the typography knobs folded into every theme
// extension.
type Settings struct {
	FontSize       int
	GutterFontSize int
}

// Extension is a theme surface extension.
type Extension struct {
	Palette  Palette
	Settings Settings
}

// ID implements surface.Extension.
func (e Extension) ID() string { return "theme." + e.Palette.Name }

type themeFile struct {
	Themes []Palette `yaml:"themes"`
}

// Provider hands out theme extensions by name.
type Provider struct {
	mu       sync.RWMutex
	palettes map[string]Palette
	settings Settings
}

// NewProvider creates a provider seeded with the embedded palettes.
func NewProvider(settings Settings) (*Provider, error) {
	p := &Provider{palettes: make(map[string]Palette), settings: settings}
	if err := p.merge(defaultThemes); err != nil {
		return nil, fmt.Errorf("embedded themes: %w", err)
	}
	return p, nil
}

// LoadFile merges user palettes from a YAML file on top of the
// defaults.
func (p *Provider) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read theme file: %w", err)
	}
	if err := p.merge(data); err != nil {
		return fmt.Errorf("theme file %s: %w", path, err)
	}
	return nil
}

func (p *Provider) merge(data []byte) error {
	var f themeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pal := range f.Themes {
		if pal.Name == "" {
			continue
		}
		p.palettes[pal.Name] = pal
	}
	return nil
}

// Theme returns the extension for name, falling back to DefaultName
// for unknown names.
func (p *Provider) Theme(name string) surface.Extension {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pal, ok := p.palettes[name]
	if !ok {
		pal = p.palettes[DefaultName]
	}
	return Extension{Palette: pal, Settings: p.settings}
}

// ReconfigureEffect returns the surface effect that swaps the live
// theme compartment to name.
func (p *Provider) ReconfigureEffect(name string) surface.Effect {
	return surface.Effect{
		Compartment: surface.CompartmentTheme,
		Extension:   p.Theme(name),
	}
}

// Names lists the known theme names.
func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.palettes))
	for n := range p.palettes {
		names = append(names, n)
	}
	return names
}
