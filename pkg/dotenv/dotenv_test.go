package dotenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	ok, err := Load(filepath.Join(t.TempDir(), "nope.env"), false)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_ParsesAndRespectsOverride(t *testing.T) {
	path := writeEnv(t, `# comment
AGENT_TEST_PLAIN=value
AGENT_TEST_DOUBLE="quoted value"
AGENT_TEST_SINGLE='single'

AGENT_TEST_EXISTING=from-file
`)
	t.Setenv("AGENT_TEST_EXISTING", "from-env")
	// Registered with t.Setenv so the test restores them afterwards.
	t.Setenv("AGENT_TEST_PLAIN", "")
	t.Setenv("AGENT_TEST_DOUBLE", "")
	t.Setenv("AGENT_TEST_SINGLE", "")
	os.Unsetenv("AGENT_TEST_PLAIN")
	os.Unsetenv("AGENT_TEST_DOUBLE")
	os.Unsetenv("AGENT_TEST_SINGLE")

	ok, err := Load(path, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", os.Getenv("AGENT_TEST_PLAIN"))
	assert.Equal(t, "quoted value", os.Getenv("AGENT_TEST_DOUBLE"))
	assert.Equal(t, "single", os.Getenv("AGENT_TEST_SINGLE"))
	assert.Equal(t, "from-env", os.Getenv("AGENT_TEST_EXISTING"))

	_, err = Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("AGENT_TEST_EXISTING"))
}

func TestLoad_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENT_TEST_CWD=yes\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("AGENT_TEST_CWD", "")
	os.Unsetenv("AGENT_TEST_CWD")

	ok, err := Load("", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", os.Getenv("AGENT_TEST_CWD"))
}

func TestBool(t *testing.T) {
	for _, v := range []string{"true", "1", "T", "y", "YES"} {
		t.Setenv("AGENT_TEST_BOOL", v)
		assert.True(t, Bool("AGENT_TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "f", "N", "no"} {
		t.Setenv("AGENT_TEST_BOOL", v)
		assert.False(t, Bool("AGENT_TEST_BOOL", true), v)
	}
	t.Setenv("AGENT_TEST_BOOL", "maybe")
	assert.True(t, Bool("AGENT_TEST_BOOL", true))
}

func TestInt(t *testing.T) {
	t.Setenv("AGENT_TEST_INT", "42")
	assert.Equal(t, 42, Int("AGENT_TEST_INT", 0))
	t.Setenv("AGENT_TEST_INT", "forty")
	assert.Equal(t, 7, Int("AGENT_TEST_INT", 7))
	assert.Equal(t, 9, Int("AGENT_TEST_INT_UNSET", 9))
}

func TestGetAndPrefix(t *testing.T) {
	t.Setenv("AGENT_TEST_PFX_A", "1")
	t.Setenv("AGENT_TEST_PFX_B", "2")
	assert.Equal(t, "1", Get("AGENT_TEST_PFX_A", "x"))
	assert.Equal(t, "x", Get("AGENT_TEST_PFX_MISSING", "x"))

	got := WithPrefix("agent_test_pfx_")
	assert.Equal(t, map[string]string{"AGENT_TEST_PFX_A": "1", "AGENT_TEST_PFX_B": "2"}, got)
	assert.NotEmpty(t, WithPrefix(""))
}
