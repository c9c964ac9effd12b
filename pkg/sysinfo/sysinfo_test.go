package sysinfo

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 << 30, "3.00 GB"},
		{2 << 40, "2.00 TB"},
		{2048 << 40, "2048.00 TB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestPlatform(t *testing.T) {
	info := Platform(context.Background())
	assert.NotEmpty(t, info.System)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.NumCPU(), info.CPUCount)
	if info.MemoryTotal != nil {
		assert.Greater(t, *info.MemoryTotal, uint64(0))
	}
}

func TestFlags(t *testing.T) {
	assert.Equal(t, runtime.GOOS == "linux", IsLinux)
	assert.False(t, IsWindows && IsPosix)
}

func TestEnvVars(t *testing.T) {
	t.Setenv("SYSINFO_TEST_KEY", "v")
	assert.Equal(t, map[string]string{"SYSINFO_TEST_KEY": "v"}, EnvVars("sysinfo_test_"))
}

func TestRunCommand(t *testing.T) {
	if IsWindows {
		t.Skip("posix shell required")
	}
	ctx := context.Background()

	res, err := RunCommand(ctx, Command{Name: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	res, err = RunCommand(ctx, Command{Name: "echo out; echo err 1>&2; exit 3", Shell: true})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)

	_, err = RunCommand(ctx, Command{Name: "exit 1", Shell: true, Check: true})
	assert.True(t, errors.Is(err, ErrCommandFailed))

	_, err = RunCommand(ctx, Command{Name: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCommandFailed))
}

func TestIsProgramInstalled(t *testing.T) {
	if IsWindows {
		t.Skip("posix shell required")
	}
	assert.True(t, IsProgramInstalled("sh"))
	assert.False(t, IsProgramInstalled("definitely-not-a-real-binary-xyz"))
}
