package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsAreRegistered(t *testing.T) {
	assert.Equal(t, "dsmviewer", rootCmd.Use)
	for _, name := range []string{"serve", "tui", "analyze", "export"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.RunE, name)
	}
	assert.NotNil(t, exportCmd.Flags().Lookup("format"))
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shop")
	files := map[string]string{
		"go.mod":           "module example.com/shop\n",
		"dsmviewer.yaml":   "log_mode: dev\nexcluded_names:\n  - \"**/gen\"\n",
		"cart/cart.go":     "package cart\n\nimport \"example.com/shop/money\"\n\ntype Cart struct {\n\tTotal money.Amount\n}\n",
		"money/money.go":   "package money\n\ntype Amount int64\n",
		"gen/generated.go": "package gen\n\ntype Stub struct{}\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestAnalyzeAndExport(t *testing.T) {
	root := writeProject(t)

	out := execute(t, "analyze", root)
	assert.Contains(t, out, "Analyzed 3 files")
	assert.FileExists(t, filepath.Join(root, ".dsmviewer", "model.db"))

	drawing := filepath.Join(t.TempDir(), "matrix.excalidraw")
	out = execute(t, "export", root, "--format", "excalidraw", "--out", drawing)
	assert.Contains(t, out, "Exported excalidraw")

	data, err := os.ReadFile(drawing)
	require.NoError(t, err)
	var scene struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &scene))
	assert.Equal(t, "excalidraw", scene.Type)

	archive := filepath.Join(t.TempDir(), "model.dsm")
	execute(t, "export", root, "--format", "dsm", "--out", archive)
	assert.FileExists(t, archive)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	root := writeProject(t)
	rootCmd.SetArgs([]string{"export", root, "--format", "svg"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "unknown export format")
	exportFormat = "dsm"
}
