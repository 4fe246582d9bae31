package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghkdsigm/figma-auto/internal/cli"
	"github.com/ghkdsigm/figma-auto/internal/config"
	"github.com/ghkdsigm/figma-auto/internal/pipeline"
)

const export = `{"document": {
  "id": "1:1", "name": "Card", "type": "FRAME", "layoutMode": "VERTICAL",
  "children": [
    {"id": "1:2", "name": "Title", "type": "TEXT", "characters": "Hello"},
    {"id": "1:3", "name": "Icon", "type": "VECTOR"}
  ]
}}`

// runCLI runs the command line inside a fresh project directory.
func runCLI(t *testing.T, dir string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	prev := cli.ColorEnabled
	t.Cleanup(func() { cli.ColorEnabled = prev })
	t.Chdir(dir)

	var out, errOut bytes.Buffer
	code = execute(context.Background(), append(args, "--no-color"), &out, &errOut)
	return code, out.String(), errOut.String()
}

func project(t *testing.T) string {
	t.Helper()
	t.Setenv("FIGMA_TOKEN", "")
	t.Setenv("FIGMA_ACCESS_TOKEN", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.json"), []byte(export), 0644))
	return dir
}

func TestVersionJSON(t *testing.T) {
	code, out, _ := runCLI(t, project(t), "version", "--json")
	require.Equal(t, 0, code)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["goVersion"])
}

func TestRunFromExport(t *testing.T) {
	dir := project(t)
	code, out, errOut := runCLI(t, dir, "run", "--input", "export.json", "--work-dir", "work",
		"--policy", "raw", "--target", "vue", "--zip", "--metrics-file", "metrics.prom")
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Project written to")
	for _, f := range []string{pipeline.RawFile, pipeline.A2UIFile, pipeline.DSFile} {
		assert.FileExists(t, filepath.Join(dir, "work", f))
	}
	assert.FileExists(t, filepath.Join(dir, "work", "out", "src", "App.vue"))
	assert.FileExists(t, filepath.Join(dir, "work", "out.zip"))
	assert.FileExists(t, filepath.Join(dir, "metrics.prom"))

	var ds struct {
		Meta struct {
			Policy string `json:"policy"`
		} `json:"meta"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "work", pipeline.DSFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ds))
	assert.Equal(t, "RAW", ds.Meta.Policy)
}

func TestStepsInSequence(t *testing.T) {
	dir := project(t)
	for _, args := range [][]string{
		{"ingest", "--input", "export.json"},
		{"normalize"},
		{"map", "--policy", "MIXED"},
		{"generate", "--out", "site"},
	} {
		code, _, errOut := runCLI(t, dir, args...)
		require.Equal(t, 0, code, "%v: %s", args, errOut)
	}
	assert.FileExists(t, filepath.Join(dir, ".figma-auto", "work", pipeline.DSFile))
	assert.FileExists(t, filepath.Join(dir, "site", "components", "GeneratedScreen.vue"))
}

func TestStepOutOfOrder(t *testing.T) {
	code, _, errOut := runCLI(t, project(t), "map")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "run the NORMALIZE step first")
}

func TestRunNeedsToken(t *testing.T) {
	code, _, errOut := runCLI(t, project(t), "run", "--url", "https://www.figma.com/design/KEY/Name?node-id=1-2")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "FIGMA_TOKEN")
}

func TestRejectsForeignURL(t *testing.T) {
	code, _, errOut := runCLI(t, project(t), "run", "--url", "https://example.com/design/KEY/Name")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not a Figma link")
	assert.Contains(t, errOut, "--file-key")
}

func TestRejectsUnknownPolicy(t *testing.T) {
	code, _, errOut := runCLI(t, project(t), "run", "--input", "export.json", "--policy", "loose")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "STRICT, TOLERANT, MIXED, RAW")
}

func TestConfigFileSelectsTarget(t *testing.T) {
	dir := project(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.Dir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.Dir, config.FileName),
		[]byte("target: vue\nwork_dir: state\n"), 0644))

	code, _, errOut := runCLI(t, dir, "run", "--input", "export.json")
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(dir, "state", "out", "src", "App.vue"))
}

func TestInit(t *testing.T) {
	dir := project(t)
	code, out, _ := runCLI(t, dir, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, filepath.Join(dir, config.Dir, config.FileName))

	code, out, _ = runCLI(t, dir, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "already exists")
}
