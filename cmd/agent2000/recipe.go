package main

import (
	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/spf13/cobra"
)

// recipeFlag registers --recipe on cmd.
func recipeFlag(cmd *cobra.Command) {
	cmd.Flags().String("recipe", "", "Recipe file (YAML or JSON) overriding the default recipe")
}

func loadRecipe(cmd *cobra.Command) (packaging.Recipe, error) {
	file, _ := cmd.Flags().GetString("recipe")
	if file == "" {
		return packaging.DefaultRecipe(), nil
	}
	return packaging.LoadRecipe(file)
}
