// Package config provides layered configuration loading for the
// editor session backend.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config holds editor settings. Zero-valued fields fall back to the
// documented defaults at read time through the accessor methods.
type Config struct {
	FontSize       int    `json:"fontSize,omitempty"`
	GutterFontSize int    `json:"gutterFontSize,omitempty"`
	TabSize        int    `json:"tabSize,omitempty"`
	Editable       *bool  `json:"editable,omitempty"`
	Theme          string `json:"theme,omitempty"`

	DebounceChangeMs int `json:"debounceChangeMs,omitempty"`
	DebounceScrollMs int `json:"debounceScrollMs,omitempty"`

	AutoFocusOnDocumentChange bool `json:"autoFocusOnDocumentChange,omitempty"`

	// WatchFiles enables the on-disk change watcher.
	WatchFiles *bool `json:"watchFiles,omitempty"`

	// Languages maps extra glob patterns to language identifiers,
	// consulted ahead of the built-in table.
	Languages map[string]string `json:"languages,omitempty"`

	// ThemeFile points at a user palette file merged over the
	// embedded themes.
	ThemeFile string `json:"themeFile,omitempty"`
}

// EffectiveTabSize returns the tab width, minimum 1, default 2.
func (c *Config) EffectiveTabSize() int {
	if c.TabSize < 1 {
		return 2
	}
	return c.TabSize
}

// EffectiveEditable returns the editable default (true when unset).
func (c *Config) EffectiveEditable() bool {
	if c.Editable == nil {
		return true
	}
	return *c.Editable
}

// EffectiveTheme returns the theme name, default "dark".
func (c *Config) EffectiveTheme() string {
	if c.Theme == "" {
		return "dark"
	}
	return c.Theme
}

// EffectiveDebounceChangeMs returns the change window, default 150.
func (c *Config) EffectiveDebounceChangeMs() int {
	if c.DebounceChangeMs <= 0 {
		return 150
	}
	return c.DebounceChangeMs
}

// EffectiveDebounceScrollMs returns the scroll window, default 100.
func (c *Config) EffectiveDebounceScrollMs() int {
	if c.DebounceScrollMs <= 0 {
		return 100
	}
	return c.DebounceScrollMs
}

// EffectiveWatchFiles returns whether the disk watcher runs (true
// when unset).
func (c *Config) EffectiveWatchFiles() bool {
	if c.WatchFiles == nil {
		return true
	}
	return *c.WatchFiles
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/codesurf/)
// 2. Project config (.codesurf/ and the project root)
// 3. CODESURF_CONFIG file
// 4. CODESURF_CONFIG_CONTENT inline JSON
func Load(directory string) (*Config, error) {
	cfg := &Config{}

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[abs] {
			return
		}
		if loadFile(path, cfg, baseDir) == nil {
			loaded[abs] = true
		}
	}

	globalDir := GlobalConfigDir()
	loadOnce(filepath.Join(globalDir, "codesurf.json"), globalDir)
	loadOnce(filepath.Join(globalDir, "codesurf.jsonc"), globalDir)

	if directory != "" {
		projectDir := filepath.Join(directory, ".codesurf")
		loadOnce(filepath.Join(directory, "codesurf.json"), directory)
		loadOnce(filepath.Join(directory, "codesurf.jsonc"), directory)
		loadOnce(filepath.Join(projectDir, "codesurf.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "codesurf.jsonc"), projectDir)
	}

	if path := os.Getenv("CODESURF_CONFIG"); path != "" {
		loadOnce(path, filepath.Dir(path))
	}

	if content := os.Getenv("CODESURF_CONFIG_CONTENT"); content != "" {
		var inline Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			merge(cfg, &inline)
		}
	}

	return cfg, nil
}

// GlobalConfigDir returns the XDG-style global config directory.
func GlobalConfigDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "codesurf")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "codesurf")
}

// DataDir returns the XDG-style data directory used for persisted
// workspace layout.
func DataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "codesurf")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "codesurf")
}

// loadFile loads one config file with JSONC and interpolation support.
func loadFile(path string, cfg *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // missing file, skip
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	merge(cfg, &fileCfg)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		path := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(os.Getenv("HOME"), path[2:])
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return match // keep the placeholder when unresolvable
		}
		return jsonEscape(strings.TrimRight(string(content), "\n"))
	})

	return []byte(str)
}

func jsonEscape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return r.Replace(s)
}

// merge overlays source onto target; later sources win.
func merge(target, source *Config) {
	if source.FontSize != 0 {
		target.FontSize = source.FontSize
	}
	if source.GutterFontSize != 0 {
		target.GutterFontSize = source.GutterFontSize
	}
	if source.TabSize != 0 {
		target.TabSize = source.TabSize
	}
	if source.Editable != nil {
		target.Editable = source.Editable
	}
	if source.Theme != "" {
		target.Theme = source.Theme
	}
	if source.DebounceChangeMs != 0 {
		target.DebounceChangeMs = source.DebounceChangeMs
	}
	if source.DebounceScrollMs != 0 {
		target.DebounceScrollMs = source.DebounceScrollMs
	}
	if source.AutoFocusOnDocumentChange {
		target.AutoFocusOnDocumentChange = true
	}
	if source.WatchFiles != nil {
		target.WatchFiles = source.WatchFiles
	}
	if source.Languages != nil {
		if target.Languages == nil {
			target.Languages = make(map[string]string)
		}
		for k, v := range source.Languages {
			target.Languages[k] = v
		}
	}
	if source.ThemeFile != "" {
		target.ThemeFile = source.ThemeFile
	}
}
