package graph_test

import (
	"strings"
	"testing"

	"github.com/agent2000/agent2000/internal/presentation/graph"
	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		stages      []packaging.StageInfo
		overlay     *graph.Overlay
		contains    []string
		notContains []string
	}{
		{
			name:   "Single Stage",
			stages: []packaging.StageInfo{{Name: "0", Image: "python:3.10-slim", Final: true}},
			contains: []string{
				"image_python_3_10_slim[/\"python:3.10-slim\"/]",
				"stage_0((\"0\"))",
				"image_python_3_10_slim --> stage_0",
			},
		},
		{
			name: "Builder Copy",
			stages: []packaging.StageInfo{
				{Name: "builder", Image: "python:3.10-slim"},
				{Name: "1", Image: "python:3.10-slim", CopiesFrom: []string{"builder"}, Final: true},
			},
			contains: []string{
				"stage_builder[\"builder\"]",
				"stage_builder -. \"COPY\" .-> stage_1",
				"image_python_3_10_slim --> stage_1",
			},
		},
		{
			name: "Stage Based On Stage",
			stages: []packaging.StageInfo{
				{Name: "base", Image: "python:3.10-slim"},
				{Name: "1", Image: "base", Final: true},
			},
			contains:    []string{"stage_base --> stage_1"},
			notContains: []string{"image_base"},
		},
		{
			name: "Overlay",
			stages: []packaging.StageInfo{
				{Name: "builder", Image: "python:3.10-slim"},
				{Name: "1", Image: "python:3.10-slim", Final: true},
			},
			overlay: &graph.Overlay{Changed: []string{"builder", "builder", "ghost"}},
			contains: []string{
				"classDef changed",
				"class stage_builder changed;",
			},
			notContains: []string{"stage_ghost"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.stages, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, got, s)
			}
			if tt.overlay != nil {
				assert.Equal(t, 1, strings.Count(got, "class stage_builder changed;"))
			}
		})
	}
}

func TestGenerateMermaid_ImageListedOnce(t *testing.T) {
	got := graph.GenerateMermaid([]packaging.StageInfo{
		{Name: "a", Image: "alpine"},
		{Name: "b", Image: "alpine", Final: true},
	}, nil)
	assert.Equal(t, 1, strings.Count(got, "image_alpine[/"))
}
