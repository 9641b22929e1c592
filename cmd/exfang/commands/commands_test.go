package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/exfang/cmd/exfang/commands"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

// The commands share the fatih/color global, so these tests run serially.

const hasPrefixExamples = `package examples

import "strings"

//exfang:before HasPrefix
func hasPrefixBefore(s, prefix string) bool {
	return strings.Index(s, prefix) == 0
}

//exfang:after HasPrefix
func hasPrefixAfter(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
`

const targetSource = `package target

import "strings"

func isGo(name string) bool {
	return strings.Index(name, "go") == 0
}
`

type workspace struct {
	config string
	store  string
	src    string
	target string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	root := t.TempDir()
	ws := &workspace{
		config: filepath.Join(root, "exfang.yaml"),
		store:  filepath.Join(root, "store"),
		src:    filepath.Join(root, "src"),
	}

	require.NoError(t, os.WriteFile(ws.config, []byte("log:\n  level: error\n"), 0o600))
	require.NoError(t, os.MkdirAll(ws.src, 0o750))

	examples := filepath.Join(root, "examples.go")
	require.NoError(t, os.WriteFile(examples, []byte(hasPrefixExamples), 0o600))

	ws.target = filepath.Join(ws.src, "target.go")
	require.NoError(t, os.WriteFile(ws.target, []byte(targetSource), 0o600))

	_, err := ws.run(t, "compile", "-o", ws.store, examples)
	require.NoError(t, err)

	return ws
}

// run executes one command line against the workspace store.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := commands.NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", ws.config, "--store", ws.store, "--no-color"}, args...))

	err := cmd.Execute()

	return stdout.String(), err
}

func TestCompile_WritesStore(t *testing.T) {
	ws := newWorkspace(t)

	assert.FileExists(t, filepath.Join(ws.store, store.ManifestFile))
	assert.FileExists(t, filepath.Join(ws.store, store.FileName("HasPrefix")))

	entries, err := store.ReadManifest(filepath.Join(ws.store, store.ManifestFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "HasPrefix", entries[0].Name)
}

func TestCompile_JSONOutput(t *testing.T) {
	ws := newWorkspace(t)

	examples := filepath.Join(filepath.Dir(ws.store), "examples.go")
	out, err := ws.run(t, "--format", "json", "compile", "-o", ws.store, examples)
	require.NoError(t, err)

	var summary struct {
		Templates []store.ManifestEntry `json:"templates"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Templates, 1)
	assert.Equal(t, "HasPrefix", summary.Templates[0].Name)
	assert.NotEmpty(t, summary.Templates[0].Fingerprint)
}

func TestCheck_ReportsFindings(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "--format", "json", "check", ws.src)
	require.NoError(t, err)

	var summary struct {
		Findings []struct {
			Unit        string `json:"unit"`
			Line        int    `json:"line"`
			Template    string `json:"template"`
			Text        string `json:"text"`
			Replacement string `json:"replacement"`
		} `json:"findings"`
		Units    int `json:"units"`
		Rewrites int `json:"rewrites"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Units)
	assert.Equal(t, 1, summary.Rewrites)
	require.Len(t, summary.Findings, 1)

	finding := summary.Findings[0]
	assert.Equal(t, ws.target, finding.Unit)
	assert.Equal(t, 6, finding.Line)
	assert.Equal(t, "HasPrefix", finding.Template)
	assert.Equal(t, `strings.Index(name, "go") == 0`, finding.Text)
	assert.Equal(t, `strings.HasPrefix(name, "go")`, finding.Replacement)
}

func TestCheck_DetectionOnly(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "--format", "json", "check", "--detection-only", ws.target)
	require.NoError(t, err)

	var summary struct {
		Findings []map[string]any `json:"findings"`
		Rewrites int              `json:"rewrites"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Findings, 1)
	assert.Zero(t, summary.Rewrites)
	assert.NotContains(t, summary.Findings[0], "replacement")
}

func TestCheck_TextOutput(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "check", ws.src)
	require.NoError(t, err)
	assert.Contains(t, out, "HasPrefix")
	assert.Contains(t, out, "target.go:6:")
	assert.Contains(t, out, "1 match in 1 unit")
}

func TestCheck_UnknownTemplate(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "check", "-t", "Missing", ws.src)
	require.ErrorIs(t, err, store.ErrUnknownTemplate)
}

func TestCheck_NoSources(t *testing.T) {
	ws := newWorkspace(t)

	empty := t.TempDir()

	_, err := ws.run(t, "check", empty)
	require.ErrorIs(t, err, commands.ErrNoSources)
}

func TestApply_PrintsDiff(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "apply", ws.src)
	require.NoError(t, err)
	assert.Contains(t, out, `-	return strings.Index(name, "go") == 0`)
	assert.Contains(t, out, `+	return strings.HasPrefix(name, "go")`)

	data, err := os.ReadFile(ws.target)
	require.NoError(t, err)
	assert.Equal(t, targetSource, string(data))
}

func TestApply_Write(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "apply", "--write", "--passes", "3", ws.src)
	require.NoError(t, err)

	data, err := os.ReadFile(ws.target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `return strings.HasPrefix(name, "go")`)
	assert.NotContains(t, string(data), "strings.Index")

	out, err := ws.run(t, "--format", "json", "check", ws.src)
	require.NoError(t, err)
	assert.Contains(t, out, `"findings": []`)
}

func TestApply_InvalidPasses(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "apply", "--passes", "0", ws.src)
	require.Error(t, err)
}

func TestList(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "--format", "json", "list")
	require.NoError(t, err)

	var views []map[string]any

	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "HasPrefix", views[0]["name"])
	assert.NotContains(t, views[0], "befores")
}

func TestInspect(t *testing.T) {
	ws := newWorkspace(t)

	path := filepath.Join(ws.store, store.FileName("HasPrefix"))

	out, err := ws.run(t, "--format", "yaml", "inspect", path)
	require.NoError(t, err)

	var views []struct {
		Name         string   `yaml:"name"`
		Version      uint16   `yaml:"version"`
		Imports      []string `yaml:"imports"`
		Placeholders []struct {
			Name  string   `yaml:"name"`
			Types []string `yaml:"types"`
		} `yaml:"placeholders"`
		Befores []string `yaml:"befores"`
		Afters  []string `yaml:"afters"`
	}

	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)

	view := views[0]
	assert.Equal(t, "HasPrefix", view.Name)
	assert.NotZero(t, view.Version)
	assert.Equal(t, []string{"strings"}, view.Imports)
	assert.Len(t, view.Placeholders, 2)
	assert.Len(t, view.Befores, 1)
	assert.Len(t, view.Afters, 1)
}

func TestInspect_Text(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "inspect", filepath.Join(ws.store, store.FileName("HasPrefix")))
	require.NoError(t, err)
	assert.Contains(t, out, "before[0]")
	assert.Contains(t, out, "after[0]")
	assert.Contains(t, out, "placeholder s string")
}

func TestInspect_NotAnArtifact(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "inspect", ws.target)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "exfang "))
}

func TestInvalidFormat(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "--format", "xml", "list")
	require.Error(t, err)
}

func TestMCPCommand_Flags(t *testing.T) {
	cmd := commands.NewRootCommand()

	mcpCmd, _, err := cmd.Find([]string{"mcp"})
	require.NoError(t, err)
	assert.Equal(t, "mcp", mcpCmd.Name())
	assert.NotEmpty(t, mcpCmd.Long)

	flag := mcpCmd.Flags().Lookup("metrics-addr")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
