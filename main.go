// Command dsmviewer analyzes a Go source tree into a dependency structure
// matrix and serves it for interactive editing over MCP or in the terminal.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/application"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/mcp"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/tui"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/watcher"
)

var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "dsmviewer",
	Short:   "Dependency structure matrix viewer for Go projects",
	Long:    `dsmviewer builds a hierarchical dependency model of a Go source tree and lets you restructure it with full undo/redo history.`,
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Serve the model over MCP on stdio",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [root]",
	Short: "Browse and edit the model in the terminal",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [root]",
	Short: "Analyze the sources and save a fresh model",
	Long: `Analyze parses every non-test Go file below root and saves the resulting
model to the project store, replacing the previous model and its history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var exportCmd = &cobra.Command{
	Use:   "export [root]",
	Short: "Export the model as a .dsm archive or an Excalidraw drawing",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var (
	exportFormat string
	exportOut    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "dsm", "Export format (dsm, excalidraw)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path (default model.dsm or matrix.excalidraw)")

	rootCmd.AddCommand(serveCmd, tuiCmd, analyzeCmd, exportCmd)
}

// setup resolves the project root and builds its configuration and logger.
func setup(args []string) (string, *config.Config, *logger.Logger, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, nil, err
	}
	cfg, err := config.LoadConfig(absRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v. Using defaults.\n", err)
		c := config.DefaultConfig
		cfg = &c
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return "", nil, nil, err
	}
	return absRoot, cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	root, cfg, log, err := setup(args)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.Open(cmd.Context(), root, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	w, err := watcher.NewWatcher(root, app, cfg, log)
	if err != nil {
		log.Warn("Failed to start file watcher", "error", err)
	} else {
		w.Start()
		defer w.Close()
	}

	log.Info("Starting dsmviewer server", "root", root)
	server := mcp.NewServer(app, log)
	return server.Run(cmd.Context(), &sdk.StdioTransport{})
}

func runTUI(cmd *cobra.Command, args []string) error {
	root, cfg, log, err := setup(args)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.Open(cmd.Context(), root, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	w, err := watcher.NewWatcher(root, app, cfg, log)
	if err == nil {
		w.Start()
		defer w.Close()
	}

	p := tea.NewProgram(tui.NewModel(app), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root, cfg, log, err := setup(args)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.New(root, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	if err := app.Save(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Analyzed %d files: %d elements, %d relations (%d excluded, %d external references)\n",
		report.Files, report.Elements, report.Relations, report.Excluded, report.External)
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  skipped: %v\n", f)
	}
	fmt.Fprintf(out, "Saved to %s\n", cfg.ModelPath(root))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	root, cfg, log, err := setup(args)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.Open(cmd.Context(), root, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	out := exportOut
	switch exportFormat {
	case "dsm":
		if out == "" {
			out = "model.dsm"
		}
		err = app.ExportArchive(out)
	case "excalidraw":
		if out == "" {
			out = "matrix.excalidraw"
		}
		err = app.ExportExcalidraw(out)
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", exportFormat, out)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
