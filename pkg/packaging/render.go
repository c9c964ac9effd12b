package packaging

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(templateFS, "templates/*.tmpl"))

type renderData struct {
	Recipe
	Variant          Variant
	EnvLines         []string
	Packages         string
	Cmd              string
	CopySources      string
	RequirementsFile string
}

// Render produces the Dockerfile for variant v built from r.
func Render(v Variant, r Recipe) (string, error) {
	if _, err := ParseVariant(string(v)); err != nil {
		return "", err
	}
	r = r.withContractEnv()
	if err := r.Validate(); err != nil {
		return "", err
	}

	cmd, err := execForm(r.Entrypoint)
	if err != nil {
		return "", err
	}
	sources := r.CopyPaths
	if len(sources) == 0 {
		sources = []string{"."}
	}
	data := renderData{
		Recipe:           r,
		Variant:          v,
		EnvLines:         envLines(r),
		Packages:         strings.Join(r.SystemPackages, " "),
		Cmd:              cmd,
		CopySources:      strings.Join(sources, " "),
		RequirementsFile: path.Base(r.Requirements),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(v)+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s dockerfile: %w", v, err)
	}
	return buf.String(), nil
}

// RenderAll renders every variant, keyed by variant.
func RenderAll(r Recipe) (map[Variant]string, error) {
	out := make(map[Variant]string, len(Variants()))
	for _, v := range Variants() {
		s, err := Render(v, r)
		if err != nil {
			return nil, err
		}
		out[v] = s
	}
	return out, nil
}

func envLines(r Recipe) []string {
	keys := r.EnvKeys()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + quoteEnv(r.Env[k])
	}
	return lines
}

// envEscaper escapes what a Dockerfile treats specially inside double quotes.
// '$' stays live so values like $PYTHONPATH expand the same quoted or not.
var envEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteEnv double-quotes values the Dockerfile parser would otherwise split.
func quoteEnv(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\"'\\") {
		return `"` + envEscaper.Replace(v) + `"`
	}
	return v
}

// execForm renders args as a JSON array in Docker's usual spacing.
func execForm(args []string) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		parts[i] = string(b)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
