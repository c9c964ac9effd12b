// Package dotenv loads .env files into the process environment and reads typed values back.
package dotenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultFile is the file name looked up in the working directory.
const DefaultFile = ".env"

// Load reads a .env file and exports its variables. An empty path means ./.env.
// Existing variables are kept unless override is set. A missing file is not an
// error: Load reports false and a nil error.
func Load(path string, override bool) (bool, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return false, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		path = filepath.Join(wd, DefaultFile)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists && !override {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return false, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return true, nil
}

// Get returns the variable or def when it is unset.
func Get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Bool parses true/1/t/y/yes and false/0/f/n/no, case-insensitively.
// Anything else, including an unset variable, yields def.
func Bool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "t", "y", "yes":
		return true
	case "false", "0", "f", "n", "no":
		return false
	}
	return def
}

// Int parses the variable as a base-10 integer, returning def when unset or invalid.
func Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// WithPrefix returns the environment variables whose names start with the
// upper-cased prefix. An empty prefix returns the whole environment.
func WithPrefix(prefix string) map[string]string {
	prefix = strings.ToUpper(prefix)
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if prefix == "" || strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
