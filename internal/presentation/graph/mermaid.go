package graph

import (
	"fmt"
	"strings"

	"github.com/agent2000/agent2000/pkg/packaging"
)

// Overlay highlights stages on the rendered graph.
type Overlay struct {
	// Changed marks stages that differ from a reference build.
	Changed []string
}

// GenerateMermaid produces a Mermaid flowchart of Dockerfile build stages.
// Shapes:
// - External base image: [/Parallelogram/]
// - Intermediate stage: [Rectangle]
// - Final stage: ((Circle))
// Solid edges are FROM relations, dotted edges are COPY --from.
func GenerateMermaid(stages []packaging.StageInfo, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	names := make(map[string]bool, len(stages))
	for _, s := range stages {
		names[s.Name] = true
	}

	images := map[string]bool{}
	for _, s := range stages {
		if names[s.Image] || images[s.Image] || s.Image == "" {
			continue
		}
		images[s.Image] = true
		fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", imageID(s.Image), s.Image)
	}

	for _, s := range stages {
		safeID := stageID(s.Name)
		opener, closer := "[", "]"
		if s.Final {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, s.Name, closer)

		from := imageID(s.Image)
		if names[s.Image] {
			from = stageID(s.Image)
		}
		if s.Image != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, safeID)
		}
		for _, src := range s.CopiesFrom {
			fmt.Fprintf(&sb, "    %s -. \"COPY\" .-> %s\n", stageID(src), safeID)
		}
	}

	if overlay != nil && len(overlay.Changed) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light and dark themes.
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
		seen := map[string]bool{}
		for _, name := range overlay.Changed {
			id := stageID(name)
			if seen[id] || !names[name] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s changed;\n", id)
		}
	}

	return sb.String()
}

func stageID(name string) string {
	return "stage_" + sanitizeMermaidID(name)
}

func imageID(image string) string {
	return "image_" + sanitizeMermaidID(image)
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", ":", "_", "@", "_")
	return r.Replace(id)
}
