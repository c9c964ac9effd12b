// Package files wraps the filesystem chores the agent host performs on workspace files.
package files

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultChunkSize is the read size used by Hash and ReadChunks.
const DefaultChunkSize = 8192

// ErrNotFound is returned when a path is missing or is not a regular file.
var ErrNotFound = errors.New("file not found")

// EnsureDir creates directory (and parents) if needed and returns its absolute path.
// A leading "~" is expanded to the user's home directory.
func EnsureDir(dir string) (string, error) {
	path, err := expand(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}

// Exists reports whether path is an existing regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// DirExists reports whether path is an existing directory.
func DirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Size returns the size of the file in bytes.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Hash returns the hex digest of the file. Supported algorithms are md5, sha1,
// sha224, sha256, sha384 and sha512; anything else falls back to sha256.
func Hash(path, algorithm string) (string, error) {
	h := newHash(algorithm)
	err := ReadChunks(path, DefaultChunkSize, func(chunk []byte) error {
		_, err := h.Write(chunk)
		return err
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(algorithm string) hash.Hash {
	switch strings.ToLower(algorithm) {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	case "sha224":
		return sha256.New224()
	case "sha384":
		return sha512.New384()
	case "sha512":
		return sha512.New()
	default:
		return sha256.New()
	}
}

// MimeType guesses the media type from the extension, without parameters.
func MimeType(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return "application/octet-stream"
	}
	mt, _, _ := strings.Cut(t, ";")
	return strings.TrimSpace(mt)
}

// ReadChunks calls fn with successive chunks of the file. The slice passed to fn
// is reused between calls.
func ReadChunks(path string, chunkSize int, fn func([]byte) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Write stores content at path, creating parent directories, and returns the
// number of bytes written.
func Write(path string, content []byte) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, werr := f.Write(content)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return n, werr
}

// Copy copies src to dst keeping mode and modification time. It returns false
// without error when src is not a regular file or dst exists and overwrite is off.
func Copy(src, dst string, overwrite bool) (bool, error) {
	si, err := os.Stat(src)
	if err != nil || !si.Mode().IsRegular() {
		return false, nil
	}
	if _, err := os.Stat(dst); err == nil && !overwrite {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("failed to create parent directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, si.Mode().Perm())
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(dst, si.Mode().Perm()); err != nil {
		return false, err
	}
	if err := os.Chtimes(dst, time.Now(), si.ModTime()); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a regular file. A missing file is an error only when missingOK is false.
func Delete(path string, missingOK bool) error {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if missingOK {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	return os.Remove(path)
}

// List returns the paths under dir matching a glob pattern, sorted. With
// recursive set the pattern is matched at any depth. A missing dir yields nil.
func List(dir, pattern string, recursive bool) ([]string, error) {
	if !DirExists(dir) {
		return nil, nil
	}
	if pattern == "" {
		pattern = "*"
	}
	if recursive {
		pattern = "**/" + pattern
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(out)
	return out, nil
}

// FileInfo is the detailed description returned by Info.
type FileInfo struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Parent      string    `json:"parent"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Permissions string    `json:"permissions"`
	MimeType    string    `json:"mime_type"`
	IsSymlink   bool      `json:"is_symlink"`
	IsDir       bool      `json:"is_dir"`
	IsFile      bool      `json:"is_file"`
}

// Info describes a regular file. Missing paths and non-files yield ErrNotFound.
func Info(path string) (*FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	isLink := false
	if li, err := os.Lstat(path); err == nil {
		isLink = li.Mode()&os.ModeSymlink != 0
	}
	return &FileInfo{
		Path:        abs,
		Name:        fi.Name(),
		Parent:      filepath.Dir(abs),
		Size:        fi.Size(),
		Created:     Created(fi),
		Modified:    fi.ModTime(),
		Permissions: fmt.Sprintf("%03o", fi.Mode().Perm()),
		MimeType:    MimeType(path),
		IsSymlink:   isLink,
		IsDir:       false,
		IsFile:      true,
	}, nil
}

func expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
