package commands

import (
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/codesurf-ai/codesurf/internal/config"
	"github.com/codesurf-ai/codesurf/internal/editor"
	"github.com/codesurf-ai/codesurf/internal/event"
	"github.com/codesurf-ai/codesurf/internal/language"
	"github.com/codesurf-ai/codesurf/internal/logging"
	"github.com/codesurf-ai/codesurf/internal/store"
	"github.com/codesurf-ai/codesurf/internal/surface"
	"github.com/codesurf-ai/codesurf/internal/theme"
	"github.com/codesurf-ai/codesurf/internal/workspace"
)

// app bundles the wired components a command runs against.
type app struct {
	Config     *config.Config
	Workspace  *workspace.Workspace
	Themes     *theme.Provider
	Languages  *language.Registry
	Surface    *surface.Memory
	Bus        *event.Bus
	Controller *editor.Controller
}

// buildApp loads configuration and wires the editor components for
// workDir.
func buildApp(workDir string) (*app, error) {
	// Optional .env next to the project.
	_ = godotenv.Load(filepath.Join(workDir, ".env"))

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Open(workDir, store.New(filepath.Join(config.DataDir(), "store")))
	if err != nil {
		return nil, err
	}

	themes, err := theme.NewProvider(theme.Settings{
		FontSize:       cfg.FontSize,
		GutterFontSize: cfg.GutterFontSize,
	})
	if err != nil {
		return nil, err
	}
	log := logging.Component("app")
	if cfg.ThemeFile != "" {
		path := cfg.ThemeFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		if err := themes.LoadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("theme file skipped")
		}
	}

	languages := language.NewRegistry()
	for pattern, lang := range cfg.Languages {
		if err := languages.Add(pattern, lang); err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("language pattern skipped")
		}
	}

	surf := surface.NewMemory()
	bus := event.NewBus()

	opts := editor.DefaultOptions()
	opts.FontSize = cfg.FontSize
	opts.GutterFontSize = cfg.GutterFontSize
	opts.TabSize = cfg.EffectiveTabSize()
	opts.Editable = cfg.EffectiveEditable()
	opts.Theme = cfg.EffectiveTheme()
	opts.DebounceChange = msToDuration(cfg.EffectiveDebounceChangeMs())
	opts.DebounceScroll = msToDuration(cfg.EffectiveDebounceScrollMs())
	opts.AutoFocusOnDocumentChange = cfg.AutoFocusOnDocumentChange

	ctrl := editor.New(surf, languages, themes, bus, opts)
	ctrl.ResetSession(workspace.NewSessionID())

	return &app{
		Config:     cfg,
		Workspace:  ws,
		Themes:     themes,
		Languages:  languages,
		Surface:    surf,
		Bus:        bus,
		Controller: ctrl,
	}, nil
}

// Close tears the app down.
func (a *app) Close() {
	a.Controller.Dispose()
	a.Bus.Close()
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
