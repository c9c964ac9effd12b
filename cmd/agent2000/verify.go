package main

import (
	"fmt"
	"os"

	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <Dockerfile>...",
	Short: "Check Dockerfiles against the packaging contract",
	Long: `Parses each Dockerfile and checks its final stage against the recipe:
base image, working directory, exposed port, entrypoint, PYTHONUNBUFFERED,
PYTHONPATH, the helpers directory and that requirements are installed before
application code is copied. Exits with status 1 when anything is violated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipe, err := loadRecipe(cmd)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			violations, err := verifyFile(path, recipe)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Fprintf(w, "%s: ok\n", path)
				continue
			}
			failed++
			for _, v := range violations {
				fmt.Fprintf(w, "%s: %s\n", path, v)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d Dockerfiles violate the contract", failed, len(args))
		}
		return nil
	},
}

func verifyFile(path string, recipe packaging.Recipe) ([]packaging.Violation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := packaging.Inspect(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return packaging.Verify(c, recipe), nil
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	recipeFlag(verifyCmd)
}
