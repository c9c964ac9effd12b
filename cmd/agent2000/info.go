package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/agent2000/agent2000"
	"github.com/agent2000/agent2000/pkg/sysinfo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type infoReport struct {
	Version  string       `json:"version" yaml:"version"`
	Platform sysinfo.Info `json:"platform" yaml:"platform"`
	History  string       `json:"history_backend" yaml:"history_backend"`
	Model    string       `json:"model" yaml:"model"`
	Docker   bool         `json:"docker_cli" yaml:"docker_cli"`
	Python   bool         `json:"python" yaml:"python"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show host and runtime information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		report := infoReport{
			Version:  strings.TrimSpace(agent2000.Version),
			Platform: sysinfo.Platform(cmd.Context()),
			History:  appConfig.History.Backend,
			Model:    appConfig.Tokens.Model,
			Docker:   sysinfo.IsProgramInstalled("docker"),
			Python:   sysinfo.IsProgramInstalled("python3") || sysinfo.IsProgramInstalled("python"),
		}
		return writeInfo(cmd.OutOrStdout(), format, report)
	},
}

func writeInfo(w io.Writer, format string, r infoReport) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		p := r.Platform
		fmt.Fprintf(tw, "version\t%s\n", r.Version)
		fmt.Fprintf(tw, "system\t%s %s (%s)\n", p.System, p.Release, p.Machine)
		fmt.Fprintf(tw, "node\t%s\n", p.Node)
		fmt.Fprintf(tw, "go\t%s\n", p.GoVersion)
		fmt.Fprintf(tw, "cpus\t%d\n", p.CPUCount)
		fmt.Fprintf(tw, "memory\t%s / %s available\n", formatMem(p.MemoryTotal), formatMem(p.MemoryAvailable))
		fmt.Fprintf(tw, "history\t%s\n", r.History)
		fmt.Fprintf(tw, "model\t%s\n", r.Model)
		fmt.Fprintf(tw, "docker cli\t%t\n", r.Docker)
		fmt.Fprintf(tw, "python\t%t\n", r.Python)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func formatMem(v *uint64) string {
	if v == nil {
		return "unknown"
	}
	return sysinfo.FormatBytes(int64(*v))
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
}
