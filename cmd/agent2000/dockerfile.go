package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agent2000/agent2000/internal/presentation/graph"
	"github.com/agent2000/agent2000/internal/presentation/tui"
	"github.com/agent2000/agent2000/pkg/files"
	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/spf13/cobra"
)

var dockerfileCmd = &cobra.Command{
	Use:   "dockerfile [variant]",
	Short: "Render a container recipe",
	Long: fmt.Sprintf(`Renders the Dockerfile of a variant (%s; default standard).
With --all every variant is rendered. With --out the files are written to a
directory as Dockerfile, Dockerfile.layered and Dockerfile.helpers.
With --graph the build stages are printed as a Mermaid flowchart instead.`, variantList()),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		outDir, _ := cmd.Flags().GetString("out")
		asGraph, _ := cmd.Flags().GetBool("graph")

		recipe, err := loadRecipe(cmd)
		if err != nil {
			return err
		}

		variants := packaging.Variants()
		if !all {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			v, err := packaging.ParseVariant(name)
			if err != nil {
				return err
			}
			variants = []packaging.Variant{v}
		}

		w := cmd.OutOrStdout()
		for i, v := range variants {
			content, err := packaging.Render(v, recipe)
			if err != nil {
				return err
			}

			if asGraph {
				c, err := packaging.Inspect(strings.NewReader(content))
				if err != nil {
					return err
				}
				content = graph.GenerateMermaid(c.Graph, nil)
			}

			if outDir != "" {
				name := v.FileName()
				if asGraph {
					name += ".mmd"
				}
				path := filepath.Join(outDir, name)
				if _, err := files.Write(path, []byte(content)); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(w, "wrote %s\n", path)
				continue
			}

			if len(variants) > 1 {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "# --- %s ---\n", v.FileName())
			}
			if f, ok := w.(*os.File); ok && !asGraph {
				content = tui.Highlight(f, "dockerfile", content)
			}
			fmt.Fprint(w, content)
			if !strings.HasSuffix(content, "\n") {
				fmt.Fprintln(w)
			}
		}
		return nil
	},
}

func variantList() string {
	names := make([]string, 0, 3)
	for _, v := range packaging.Variants() {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(dockerfileCmd)
	dockerfileCmd.Flags().Bool("all", false, "Render every variant")
	dockerfileCmd.Flags().StringP("out", "o", "", "Write files to this directory instead of stdout")
	dockerfileCmd.Flags().Bool("graph", false, "Print the build stages as a Mermaid flowchart")
	recipeFlag(dockerfileCmd)
}
