package packaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownVariant is returned for variant names other than standard, layered and helpers.
	ErrUnknownVariant = errors.New("unknown dockerfile variant")
	// ErrInvalidRecipe is returned when a recipe cannot produce a valid image.
	ErrInvalidRecipe = errors.New("invalid recipe")
)

// Variant names one of the build strategies.
type Variant string

const (
	Standard Variant = "standard"
	Layered  Variant = "layered"
	Helpers  Variant = "helpers"
)

// Variants lists every variant in a stable order.
func Variants() []Variant {
	return []Variant{Standard, Layered, Helpers}
}

// ParseVariant maps a name to a Variant. The empty string means Standard.
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case "":
		return Standard, nil
	case Standard, Layered, Helpers:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// FileName is the conventional file name for a rendered variant.
func (v Variant) FileName() string {
	if v == Standard {
		return "Dockerfile"
	}
	return "Dockerfile." + string(v)
}

// Well-known environment keys of the contract.
const (
	EnvPythonPath       = "PYTHONPATH"
	EnvPythonUnbuffered = "PYTHONUNBUFFERED"
)

// Recipe describes the image to build.
type Recipe struct {
	BaseImage      string            `json:"base_image" yaml:"base_image"`
	Workdir        string            `json:"workdir" yaml:"workdir"`
	Port           int               `json:"port" yaml:"port"`
	Entrypoint     []string          `json:"entrypoint" yaml:"entrypoint"`
	Env            map[string]string `json:"env" yaml:"env"`
	Requirements   string            `json:"requirements" yaml:"requirements"`
	HelpersDir     string            `json:"helpers_dir" yaml:"helpers_dir"`
	SystemPackages []string          `json:"system_packages" yaml:"system_packages"`
	CopyPaths      []string          `json:"copy_paths" yaml:"copy_paths"`
}

// DefaultRecipe returns the recipe every variant ships with.
func DefaultRecipe() Recipe {
	return Recipe{
		BaseImage:  "python:3.10-slim",
		Workdir:    "/app",
		Port:       8080,
		Entrypoint: []string{"python", "run_ui.py"},
		Env: map[string]string{
			EnvPythonUnbuffered: "1",
			EnvPythonPath:       "/app:$PYTHONPATH",
		},
		Requirements:   "requirements.txt",
		HelpersDir:     "/app/python/helpers",
		SystemPackages: []string{"build-essential"},
		CopyPaths:      []string{"."},
	}
}

// LoadRecipe reads a YAML or JSON recipe and lays it over DefaultRecipe.
// JSON files may contain comments and trailing commas.
func LoadRecipe(file string) (Recipe, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to read recipe: %w", err)
	}
	r := DefaultRecipe()
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &r); err != nil {
			return Recipe{}, fmt.Errorf("failed to parse recipe %s: %w", file, err)
		}
	default:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return Recipe{}, fmt.Errorf("failed to parse recipe %s: %w", file, err)
		}
	}
	r = r.withContractEnv()
	if err := r.Validate(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// withContractEnv fills in the two contract variables if a recipe dropped them.
func (r Recipe) withContractEnv() Recipe {
	env := make(map[string]string, len(r.Env)+2)
	for k, v := range r.Env {
		env[k] = v
	}
	if _, ok := env[EnvPythonUnbuffered]; !ok {
		env[EnvPythonUnbuffered] = "1"
	}
	if _, ok := env[EnvPythonPath]; !ok {
		env[EnvPythonPath] = r.Workdir + ":$PYTHONPATH"
	}
	r.Env = env
	return r
}

// Validate checks that the recipe can be rendered into a working image.
func (r Recipe) Validate() error {
	var problems []string
	if r.BaseImage == "" {
		problems = append(problems, "base_image is required")
	}
	if !path.IsAbs(r.Workdir) {
		problems = append(problems, "workdir must be an absolute path")
	}
	if r.Port < 1 || r.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", r.Port))
	}
	if len(r.Entrypoint) == 0 {
		problems = append(problems, "entrypoint is required")
	}
	if r.Requirements == "" {
		problems = append(problems, "requirements is required")
	}
	if !path.IsAbs(r.HelpersDir) {
		problems = append(problems, "helpers_dir must be an absolute path")
	}
	for _, k := range r.EnvKeys() {
		if k == "" || strings.ContainsAny(k, " =\t") {
			problems = append(problems, fmt.Sprintf("invalid env name %q", k))
		}
		if strings.ContainsAny(r.Env[k], "\r\n") {
			problems = append(problems, fmt.Sprintf("env %s spans several lines", k))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRecipe, strings.Join(problems, "; "))
	}
	return nil
}

// EnvKeys returns the environment keys in sorted order.
func (r Recipe) EnvKeys() []string {
	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
