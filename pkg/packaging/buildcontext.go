package packaging

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DockerfileName is where Context places the rendered Dockerfile.
const DockerfileName = "Dockerfile"

type ignoreRule struct {
	pattern string
	negate  bool
}

// ignoreRules reads dir/.dockerignore. Blank lines and comments are skipped;
// a leading '!' re-includes matching paths.
func ignoreRules(dir string) ([]ignoreRule, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rules []ignoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := ignoreRule{}
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			r.negate = true
			line = strings.TrimSpace(rest)
		}
		r.pattern = strings.TrimPrefix(path.Clean(filepath.ToSlash(line)), "/")
		rules = append(rules, r)
	}
	return rules, sc.Err()
}

// ignored applies rules in order, last match wins. A pattern matching a
// parent directory matches everything below it.
func ignored(rel string, rules []ignoreRule) bool {
	out := false
	for _, r := range rules {
		if matchIgnore(r.pattern, rel) {
			out = !r.negate
		}
	}
	return out
}

func matchIgnore(pattern, rel string) bool {
	for p := rel; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Context builds a tar build context from dir with dockerfile stored as
// Dockerfile at its root.
func Context(dir, dockerfile string) (io.Reader, error) {
	rules, err := ignoreRules(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	hasNegation := false
	for _, r := range rules {
		hasNegation = hasNegation || r.negate
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == DockerfileName {
			return nil
		}
		if ignored(rel, rules) && rel != ".dockerignore" {
			if d.IsDir() && !hasNegation {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = rel
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive build context: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     DockerfileName,
		Mode:     0644,
		Size:     int64(len(dockerfile)),
		ModTime:  time.Now(),
	}); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(tw, dockerfile); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
