package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() == "stringSlice" {
			return
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { resetFlags(rootCmd) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agent2000 version ")
}

func TestDockerfile_Default(t *testing.T) {
	out, err := run(t, "dockerfile")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM python:3.10-slim")
	assert.Contains(t, out, "EXPOSE 8080")
	assert.Contains(t, out, `CMD ["python", "run_ui.py"]`)
}

func TestBuild_ContextLacksSources(t *testing.T) {
	_, err := run(t, "build", "helpers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build context . lacks requirements.txt")
}

func TestDockerfile_UnknownVariant(t *testing.T) {
	_, err := run(t, "dockerfile", "fancy")
	require.ErrorIs(t, err, packaging.ErrUnknownVariant)
}

func TestDockerfile_AllToDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "dockerfile", "--all", "--out", dir)
	require.NoError(t, err)

	for _, v := range packaging.Variants() {
		path := filepath.Join(dir, v.FileName())
		assert.Contains(t, out, "wrote "+path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		c, err := packaging.Inspect(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Empty(t, packaging.Verify(c, packaging.DefaultRecipe()), v)
	}
}

func TestDockerfile_Graph(t *testing.T) {
	out, err := run(t, "dockerfile", "layered", "--graph")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `stage_builder -. "COPY" .-> stage_1`)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Dockerfile")
	content, err := packaging.Render(packaging.Helpers, packaging.DefaultRecipe())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, []byte(content), 0o644))

	out, err := run(t, "verify", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok")

	bad := filepath.Join(dir, "Dockerfile.bad")
	require.NoError(t, os.WriteFile(bad, []byte("FROM alpine\nCMD [\"sh\"]\n"), 0o644))

	out, err = run(t, "verify", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out, bad+": base-image")
}

func TestVerify_MissingFile(t *testing.T) {
	_, err := run(t, "verify", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestInfo_JSON(t *testing.T) {
	out, err := run(t, "info", "--format", "json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report["version"])
	assert.Equal(t, "memory", report["history_backend"])
	assert.Contains(t, report, "platform")
}

func TestInfo_Formats(t *testing.T) {
	out, err := run(t, "info", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "history_backend: memory")

	out, err = run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "model")
	assert.Contains(t, out, "gpt-4")

	_, err = run(t, "info", "--format", "xml")
	require.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("AGENT2000_HISTORY_BACKEND", "postgres")
	_, err := run(t, "version")
	require.Error(t, err)
}
