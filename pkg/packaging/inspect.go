package packaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// ErrNoStages is returned by Inspect for input without a FROM instruction.
var ErrNoStages = errors.New("dockerfile has no build stage")

// Contract is what a Dockerfile promises about the image its final stage produces.
type Contract struct {
	BaseImage    string            `json:"base_image" yaml:"base_image"`
	Workdir      string            `json:"workdir" yaml:"workdir"`
	ExposedPorts []int             `json:"exposed_ports" yaml:"exposed_ports"`
	Cmd          []string          `json:"cmd" yaml:"cmd"`
	CmdShell     bool              `json:"cmd_shell,omitempty" yaml:"cmd_shell,omitempty"`
	Env          map[string]string `json:"env" yaml:"env"`
	Dirs         []string          `json:"dirs" yaml:"dirs"`
	// CopySources are the build-context paths any stage copies, in file
	// order.
	CopySources []string `json:"copy_sources" yaml:"copy_sources"`
	// RequirementsInstalledBeforeCopy holds when a pip install of a
	// requirements file (directly, or copied in from an earlier stage)
	// precedes the first copy of application code.
	RequirementsInstalledBeforeCopy bool `json:"requirements_installed_before_copy" yaml:"requirements_installed_before_copy"`
	Stages                          int  `json:"stages" yaml:"stages"`
	// Graph lists every stage in file order.
	Graph []StageInfo `json:"graph" yaml:"graph"`
}

// StageInfo describes one build stage and what it pulls from other stages.
type StageInfo struct {
	// Name is the AS alias, or the stage index when there is none.
	Name       string   `json:"name" yaml:"name"`
	Image      string   `json:"image" yaml:"image"`
	CopiesFrom []string `json:"copies_from,omitempty" yaml:"copies_from,omitempty"`
	Final      bool     `json:"final,omitempty" yaml:"final,omitempty"`
}

type stage struct {
	name         string
	image        string
	instructions []*parser.Node
}

// Inspect parses a Dockerfile and extracts the contract of its final stage.
func Inspect(r io.Reader) (*Contract, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dockerfile: %w", err)
	}

	var stages []*stage
	for _, n := range res.AST.Children {
		if n.Value == "from" {
			stages = append(stages, newStage(n))
			continue
		}
		if len(stages) == 0 {
			// ARG may precede the first FROM.
			continue
		}
		cur := stages[len(stages)-1]
		cur.instructions = append(cur.instructions, n)
	}
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	final := stages[len(stages)-1]
	c := &Contract{
		BaseImage: resolveImage(final, stages),
		Workdir:   "/",
		Env:       map[string]string{},
		Stages:    len(stages),
		Graph:     stageGraph(stages),
	}
	for _, st := range stages {
		for _, n := range st.instructions {
			if (n.Value != "copy" && n.Value != "add") || flagValue(n.Flags, "from") != "" {
				continue
			}
			for _, src := range copySources(n) {
				if !slices.Contains(c.CopySources, src) {
					c.CopySources = append(c.CopySources, src)
				}
			}
		}
	}

	dirs := map[string]bool{}
	installAt, codeAt := -1, -1
	for i, n := range final.instructions {
		switch n.Value {
		case "workdir":
			if n.Next != nil {
				c.Workdir = resolvePath(c.Workdir, n.Next.Value)
				dirs[c.Workdir] = true
			}
		case "env":
			for k := n.Next; k != nil && k.Next != nil; {
				c.Env[k.Value] = unquote(k.Next.Value)
				// Each pair may be followed by a separator node.
				k = k.Next.Next
				if k != nil && (k.Value == "=" || k.Value == "") {
					k = k.Next
				}
			}
		case "expose":
			for p := n.Next; p != nil; p = p.Next {
				port, _, _ := strings.Cut(p.Value, "/")
				if v, err := strconv.Atoi(port); err == nil {
					c.ExposedPorts = append(c.ExposedPorts, v)
				}
			}
		case "cmd":
			c.Cmd, c.CmdShell = commandArgs(n)
		case "run":
			args, _ := commandArgs(n)
			script := strings.Join(args, " ")
			for _, d := range mkdirTargets(script) {
				dirs[resolvePath(c.Workdir, d)] = true
			}
			if installAt < 0 && installsRequirements(script) {
				installAt = i
			}
		case "copy", "add":
			from := flagValue(n.Flags, "from")
			if from != "" {
				if installAt < 0 && stageInstallsRequirements(from, stages) {
					installAt = i
				}
				continue
			}
			if codeAt < 0 && copiesCode(n) {
				codeAt = i
			}
		}
	}

	c.RequirementsInstalledBeforeCopy = installAt >= 0 && (codeAt < 0 || installAt < codeAt)
	for d := range dirs {
		c.Dirs = append(c.Dirs, d)
	}
	sort.Strings(c.Dirs)
	return c, nil
}

func stageGraph(stages []*stage) []StageInfo {
	out := make([]StageInfo, len(stages))
	for i, s := range stages {
		info := StageInfo{Name: s.name, Image: s.image, Final: i == len(stages)-1}
		if info.Name == "" {
			info.Name = strconv.Itoa(i)
		}
		if ref := findStage(s.image, stages); ref != nil {
			info.Image = stageName(ref, stages)
		}
		seen := map[string]bool{}
		for _, n := range s.instructions {
			if n.Value != "copy" && n.Value != "add" {
				continue
			}
			from := flagValue(n.Flags, "from")
			if from == "" {
				continue
			}
			if ref := findStage(from, stages); ref != nil {
				from = stageName(ref, stages)
			}
			if !seen[from] {
				seen[from] = true
				info.CopiesFrom = append(info.CopiesFrom, from)
			}
		}
		out[i] = info
	}
	return out
}

func stageName(s *stage, stages []*stage) string {
	if s.name != "" {
		return s.name
	}
	for i, other := range stages {
		if other == s {
			return strconv.Itoa(i)
		}
	}
	return ""
}

func newStage(n *parser.Node) *stage {
	s := &stage{}
	if n.Next == nil {
		return s
	}
	s.image = n.Next.Value
	if as := n.Next.Next; as != nil && strings.EqualFold(as.Value, "as") && as.Next != nil {
		s.name = strings.ToLower(as.Next.Value)
	}
	return s
}

// resolveImage follows FROM <stage> references back to a real image.
func resolveImage(s *stage, stages []*stage) string {
	image := s.image
	for range stages {
		next := findStage(image, stages)
		if next == nil || next == s {
			break
		}
		s, image = next, next.image
	}
	return image
}

func findStage(ref string, stages []*stage) *stage {
	ref = strings.ToLower(ref)
	for i, s := range stages {
		if s.name != "" && s.name == ref {
			return s
		}
		if strconv.Itoa(i) == ref {
			return s
		}
	}
	return nil
}

func stageInstallsRequirements(ref string, stages []*stage) bool {
	s := findStage(ref, stages)
	if s == nil {
		return false
	}
	for _, n := range s.instructions {
		if n.Value != "run" {
			continue
		}
		args, _ := commandArgs(n)
		if installsRequirements(strings.Join(args, " ")) {
			return true
		}
	}
	return false
}

// commandArgs returns the arguments of a RUN or CMD node and whether it is
// in shell form. Shell-form commands come back as a single element.
func commandArgs(n *parser.Node) ([]string, bool) {
	var args []string
	for a := n.Next; a != nil; a = a.Next {
		args = append(args, a.Value)
	}
	return args, !n.Attributes["json"]
}

func flagValue(flags []string, name string) string {
	prefix := "--" + name + "="
	for _, f := range flags {
		if v, ok := strings.CutPrefix(f, prefix); ok {
			return v
		}
	}
	return ""
}

// shellCommands splits a shell script into simple commands.
func shellCommands(script string) [][]string {
	r := strings.NewReplacer("&&", "\n", "||", "\n", ";", "\n", "|", "\n", "\\\n", " ")
	var cmds [][]string
	for _, line := range strings.Split(r.Replace(script), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			cmds = append(cmds, fields)
		}
	}
	return cmds
}

func mkdirTargets(script string) []string {
	var out []string
	for _, fields := range shellCommands(script) {
		if path.Base(fields[0]) != "mkdir" {
			continue
		}
		for _, arg := range fields[1:] {
			if strings.HasPrefix(arg, "-") {
				continue
			}
			out = append(out, unquote(arg))
		}
	}
	return out
}

func installsRequirements(script string) bool {
	for _, fields := range shellCommands(script) {
		pip := -1
		for i, f := range fields {
			if base := path.Base(f); base == "pip" || base == "pip3" {
				pip = i
				break
			}
		}
		if pip < 0 || pip+1 >= len(fields) || fields[pip+1] != "install" {
			continue
		}
		for _, f := range fields[pip+2:] {
			if f == "-r" || f == "--requirement" || strings.HasPrefix(f, "--requirement=") {
				return true
			}
		}
	}
	return false
}

// MissingSources lists the CopySources that dir lacks. A wildcard source is
// missing when it matches nothing.
func (c *Contract) MissingSources(dir string) []string {
	var missing []string
	for _, src := range c.CopySources {
		if isRemote(src) {
			continue
		}
		p := filepath.Join(dir, filepath.FromSlash(src))
		if strings.ContainsAny(src, "*?[") {
			if matches, err := filepath.Glob(p); err == nil && len(matches) > 0 {
				continue
			}
		} else if _, err := os.Stat(p); err == nil {
			continue
		}
		missing = append(missing, src)
	}
	return missing
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "git@")
}

// copySources returns the source operands of a COPY/ADD node.
func copySources(n *parser.Node) []string {
	var srcs []string
	for a := n.Next; a != nil && a.Next != nil; a = a.Next {
		srcs = append(srcs, unquote(a.Value))
	}
	return srcs
}

// copiesCode reports whether a COPY/ADD brings in anything besides
// requirements files.
func copiesCode(n *parser.Node) bool {
	for _, s := range copySources(n) {
		if ok, _ := path.Match("requirements*.txt", path.Base(s)); !ok {
			return true
		}
	}
	return false
}

func resolvePath(workdir, p string) string {
	p = unquote(p)
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(workdir, p)
}

// unquote strips one level of Dockerfile quoting. Inside double quotes a
// backslash escapes only '"', '\\' and '$'; other backslashes are literal.
func unquote(s string) string {
	if len(s) < 2 || s[0] != s[len(s)-1] || (s[0] != '"' && s[0] != '\'') {
		return s
	}
	body := s[1 : len(s)-1]
	if s[0] == '\'' {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && strings.IndexByte(`"\$`, body[i+1]) >= 0 {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
