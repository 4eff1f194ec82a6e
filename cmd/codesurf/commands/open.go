package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/codesurf-ai/codesurf/internal/editor"
	"github.com/codesurf-ai/codesurf/internal/surface"
)

var openDir string

var openCmd = &cobra.Command{
	Use:   "open <file>",
	Short: "Inspect how a file would open in the editor",
	Long: `Open a file through the editor pipeline without a frontend and
print the resulting document state as JSON: binary detection, language
attachment, theme, and tab policy.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	openCmd.Flags().StringVar(&openDir, "directory", "", "Working directory")
}

type openReport struct {
	Path     string `json:"path"`
	Binary   bool   `json:"binary"`
	Editable bool   `json:"editable"`
	Language string `json:"language,omitempty"`
	Theme    string `json:"theme"`
	TabSize  int    `json:"tabSize,omitempty"`
	Lines    int    `json:"lines"`
	Bytes    int    `json:"bytes"`
}

func runOpen(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(openDir)
	if err != nil {
		return err
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	a, err := buildApp(workDir)
	if err != nil {
		return err
	}
	defer a.Close()

	binary := false
	if len(data) > 0 {
		binary = true
		for m := mimetype.Detect(data); m != nil; m = m.Parent() {
			if m.Is("text/plain") {
				binary = false
				break
			}
		}
	}

	a.Controller.SetDocument(&editor.Document{
		Path:    path,
		Content: string(data),
		Binary:  binary,
	}, a.Config.EffectiveEditable(), false)

	report := openReport{
		Path:     path,
		Binary:   binary,
		Editable: a.Controller.Editable(),
		Theme:    a.Config.EffectiveTheme(),
		Bytes:    len(data),
		Lines:    strings.Count(string(data), "\n") + 1,
	}

	if !binary {
		report.TabSize = a.Surface.State().TabSize()
		report.Language = waitForLanguage(a, path, 2*time.Second)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// waitForLanguage polls until the async language attachment lands.
func waitForLanguage(a *app, path string, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st := a.Controller.CachedState(path)
		if st != nil {
			if ext := st.Compartment(surface.CompartmentLanguage); ext != nil {
				return strings.TrimPrefix(ext.ID(), "lang.")
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return ""
}
