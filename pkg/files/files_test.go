package files

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "c")
	got, err := EnsureDir(target)
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.True(t, DirExists(target))

	// Idempotent.
	_, err = EnsureDir(target)
	assert.NoError(t, err)
}

func TestEnsureDir_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := EnsureDir("~/workspace")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "workspace"), got)
}

func TestExistsAndSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))

	assert.True(t, Exists(path))
	assert.False(t, Exists(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(path))

	size, err := Size(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	tests := map[string]string{
		"md5":     "900150983cd24fb0d6963f7d28e17f72",
		"sha1":    "a9993e364706816aba3e25717850c26c9cd0d89d",
		"sha256":  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"SHA256":  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"unknown": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for algo, want := range tests {
		got, err := Hash(path, algo)
		require.NoError(t, err, algo)
		assert.Equal(t, want, got, algo)
	}

	_, err := Hash(filepath.Join(t.TempDir(), "missing"), "sha256")
	assert.Error(t, err)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", MimeType("notes.txt"))
	assert.Equal(t, "application/json", MimeType("data.json"))
	assert.Equal(t, "application/octet-stream", MimeType("blob.unknownext"))
}

func TestReadChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	data := bytes.Repeat([]byte("x"), 20)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var sizes []int
	err := ReadChunks(path, 8, func(b []byte) error {
		sizes = append(sizes, len(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 4}, sizes)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")
	n, err := Write(path, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(src, old, old))

	ok, err := Copy(src, dst, false)
	require.NoError(t, err)
	assert.True(t, ok)

	fi, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	assert.True(t, fi.ModTime().Equal(old))

	ok, err = Copy(src, dst, false)
	require.NoError(t, err)
	assert.False(t, ok, "existing destination without overwrite")

	ok, err = Copy(src, dst, true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Copy(filepath.Join(dir, "missing"), dst, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, Delete(path, false))
	assert.False(t, Exists(path))

	assert.NoError(t, Delete(path, true))
	assert.ErrorIs(t, Delete(path, false), ErrNotFound)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.txt", "b.md", "sub/c.txt", "sub/deeper/d.txt"} {
		_, err := Write(filepath.Join(dir, p), []byte("x"))
		require.NoError(t, err)
	}

	flat, err := List(dir, "*.txt", false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt")}, flat)

	deep, err := List(dir, "*.txt", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "sub", "c.txt"),
		filepath.Join(dir, "sub", "deeper", "d.txt"),
	}, deep)

	none, err := List(filepath.Join(dir, "missing"), "*", false)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o640))

	info, err := Info(path)
	require.NoError(t, err)
	assert.Equal(t, "report.json", info.Name)
	assert.Equal(t, int64(2), info.Size)
	assert.Equal(t, "640", info.Permissions)
	assert.Equal(t, "application/json", info.MimeType)
	assert.True(t, info.IsFile)
	assert.False(t, info.IsSymlink)
	assert.False(t, info.Created.IsZero())
	assert.False(t, info.Created.After(info.Modified))

	_, err = Info(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}
