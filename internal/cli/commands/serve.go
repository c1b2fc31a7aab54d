package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/leapstack-labs/ezql/internal/cli/config"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/leapstack-labs/ezql/internal/ui"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "serve <path>",
		Short: "Serve the lineage viewer",
		Long: `Start a local web server showing the lineage of a SQL file or directory.

The viewer provides:
- Mermaid chart of the table lineage, with a saved filter
- JSON endpoints: /api/procedures, /api/errored, /api/graph
- Run history under /api/runs when a store is configured
- Live reload when watched .sql files change`,
		Example: `  # Serve a directory on the default port
  ezql serve ./procedures

  # Custom port, no file watching
  ezql serve ./procedures --port 3000 --watch=false

  # Keep every reload in a store and open the browser
  ezql serve ./procedures --store lineage.db --open`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], open)
		},
	}

	cmd.Flags().Int("port", config.DefaultUIPort, "Port to serve on")
	cmd.Flags().Bool("watch", true, "Re-parse when .sql files change")
	cmd.Flags().String("session-secret", "", "Secret of the filter session cookie (random when empty)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the viewer in the default browser")

	return cmd
}

func runServe(cmd *cobra.Command, path string, open bool) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	if _, err := engine.ValidatePath(path); err != nil {
		return err
	}

	eng, err := engine.New(cfg.EngineConfig(logger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	var store state.Store
	if cfg.Store.Path != "" {
		s, err := openStore(cfg.Store.Path, logger)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	port := cfg.UI.Port
	if port == 0 {
		port = ui.DefaultPort
	}

	server := ui.NewServer(ui.Config{
		Engine:        eng,
		Store:         store,
		Path:          path,
		Port:          port,
		Watch:         cfg.UI.Watch,
		SessionSecret: cfg.UI.SessionSecret,
		Logger:        logger,
	})

	url := fmt.Sprintf("http://localhost:%d", port)
	if open {
		go openBrowser(url)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving lineage of %s on %s\n", path, url)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
