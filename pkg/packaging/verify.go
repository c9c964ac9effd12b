package packaging

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Rule names reported in Violations.
const (
	RuleBaseImage    = "base-image"
	RuleWorkdir      = "workdir"
	RulePort         = "expose-port"
	RuleCmd          = "cmd"
	RuleUnbuffered   = "env-unbuffered"
	RulePythonPath   = "env-pythonpath"
	RuleEnv          = "env"
	RuleHelpersDir   = "helpers-dir"
	RuleRequirements = "requirements-order"
)

// Violation is one broken rule.
type Violation struct {
	Rule    string `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
}

func (v Violation) String() string {
	return v.Rule + ": " + v.Message
}

// Verify checks c against r and returns every rule it breaks.
func Verify(c *Contract, r Recipe) []Violation {
	r = r.withContractEnv()
	var out []Violation
	add := func(rule, format string, args ...any) {
		out = append(out, Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	if c.BaseImage != r.BaseImage {
		add(RuleBaseImage, "final stage is based on %q, want %q", c.BaseImage, r.BaseImage)
	}
	if path.Clean(c.Workdir) != path.Clean(r.Workdir) {
		add(RuleWorkdir, "workdir is %q, want %q", c.Workdir, r.Workdir)
	}
	if !slices.Contains(c.ExposedPorts, r.Port) {
		add(RulePort, "port %d is not exposed (exposed: %v)", r.Port, c.ExposedPorts)
	}

	cmd := c.Cmd
	if c.CmdShell && len(cmd) == 1 {
		cmd = strings.Fields(cmd[0])
	}
	if !slices.Equal(cmd, r.Entrypoint) {
		add(RuleCmd, "default command is %q, want %q", cmd, r.Entrypoint)
	}

	if c.Env[EnvPythonUnbuffered] != "1" {
		add(RuleUnbuffered, "%s must be 1, got %q", EnvPythonUnbuffered, c.Env[EnvPythonUnbuffered])
	}
	if !pathListContains(c.Env[EnvPythonPath], r.Workdir) {
		add(RulePythonPath, "%s %q does not include %s", EnvPythonPath, c.Env[EnvPythonPath], r.Workdir)
	}
	for _, k := range r.EnvKeys() {
		if k == EnvPythonPath || k == EnvPythonUnbuffered {
			continue
		}
		if got, ok := c.Env[k]; !ok || got != r.Env[k] {
			add(RuleEnv, "%s is %q, want %q", k, got, r.Env[k])
		}
	}

	if !slices.Contains(c.Dirs, path.Clean(r.HelpersDir)) {
		add(RuleHelpersDir, "%s is never created", r.HelpersDir)
	}
	if !c.RequirementsInstalledBeforeCopy {
		add(RuleRequirements, "%s must be installed before application code is copied", r.Requirements)
	}
	return out
}

func pathListContains(list, dir string) bool {
	dir = path.Clean(dir)
	for _, p := range strings.Split(list, ":") {
		if p != "" && path.Clean(p) == dir {
			return true
		}
	}
	return false
}
