// Package sysinfo reports facts about the host the service runs on and runs external programs.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/agent2000/agent2000/pkg/dotenv"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Platform flags, fixed at compile time.
const (
	IsWindows = runtime.GOOS == "windows"
	IsLinux   = runtime.GOOS == "linux"
	IsMac     = runtime.GOOS == "darwin"
	IsPosix   = !IsWindows && runtime.GOOS != "plan9" && runtime.GOOS != "js" && runtime.GOOS != "wasip1"
)

// Info describes the host and the Go runtime.
type Info struct {
	System          string  `json:"system" yaml:"system"`
	Node            string  `json:"node" yaml:"node"`
	Release         string  `json:"release" yaml:"release"`
	Version         string  `json:"version" yaml:"version"`
	Machine         string  `json:"machine" yaml:"machine"`
	GoVersion       string  `json:"go_version" yaml:"go_version"`
	Compiler        string  `json:"compiler" yaml:"compiler"`
	CPUCount        int     `json:"cpu_count" yaml:"cpu_count"`
	MemoryTotal     *uint64 `json:"memory_total" yaml:"memory_total"`
	MemoryAvailable *uint64 `json:"memory_available" yaml:"memory_available"`
}

// Platform collects host information. Fields the OS refuses to report are left
// empty; memory figures are nil when unavailable.
func Platform(ctx context.Context) Info {
	info := Info{
		System:    systemName(runtime.GOOS),
		Machine:   runtime.GOARCH,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		CPUCount:  runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		info.Node = name
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Release = h.KernelVersion
		info.Version = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
		if h.KernelArch != "" {
			info.Machine = h.KernelArch
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		total, avail := vm.Total, vm.Available
		info.MemoryTotal = &total
		info.MemoryAvailable = &avail
	}
	return info
}

func systemName(goos string) string {
	switch goos {
	case "darwin":
		return "Darwin"
	case "linux":
		return "Linux"
	case "windows":
		return "Windows"
	}
	if goos == "" {
		return ""
	}
	return strings.ToUpper(goos[:1]) + goos[1:]
}

// EnvVars returns environment variables starting with the upper-cased prefix.
func EnvVars(prefix string) map[string]string {
	return dotenv.WithPrefix(prefix)
}

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders a size with binary units, e.g. "512 B" or "1.50 KB".
func FormatBytes(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	v := float64(size)
	for i, unit := range byteUnits {
		v /= 1024
		if v < 1024 || i == len(byteUnits)-1 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
	}
	return fmt.Sprintf("%d B", size)
}
