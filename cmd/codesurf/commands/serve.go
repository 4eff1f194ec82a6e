package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesurf-ai/codesurf/internal/editor"
	"github.com/codesurf-ai/codesurf/internal/logging"
	"github.com/codesurf-ai/codesurf/internal/server"
	"github.com/codesurf-ai/codesurf/internal/watcher"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editor session backend",
	Long: `Start codesurf as an HTTP backend. Editor frontends open
documents, send keys and scrolls, and subscribe to the event stream.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 7777, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	log := logging.Component("serve")
	log.Info().Str("version", Version).Str("directory", workDir).Msg("starting")

	a, err := buildApp(workDir)
	if err != nil {
		return err
	}
	defer a.Close()

	var fw *watcher.Watcher
	if a.Config.EffectiveWatchFiles() {
		fw, err = watcher.New(a.Bus, func(path, content string) {
			active := a.Controller.Active()
			if active == nil || active.Path != path {
				return
			}
			a.Controller.SetDocument(&editor.Document{
				Path:    path,
				Content: content,
			}, a.Controller.Editable(), false)
		})
		if err != nil {
			return err
		}
		fw.Start()
		defer fw.Stop()
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, server.Deps{
		AppConfig:  a.Config,
		Controller: a.Controller,
		Surface:    a.Surface,
		Themes:     a.Themes,
		Workspace:  a.Workspace,
		Watcher:    fw,
		Bus:        a.Bus,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", servePort).Msg("listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
