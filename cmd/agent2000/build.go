package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/agent2000/agent2000"
	"github.com/agent2000/agent2000/internal/adapters/docker"
	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [variant]",
	Short: "Build an image from a recipe",
	Long: `Renders the Dockerfile of a variant, checks it against the contract, packs
the source directory (honouring .dockerignore) and builds it on the Docker daemon
found through DOCKER_HOST or the platform default socket.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contextDir, _ := cmd.Flags().GetString("context")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		pull, _ := cmd.Flags().GetBool("pull")

		recipe, err := loadRecipe(cmd)
		if err != nil {
			return err
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		variant, err := packaging.ParseVariant(name)
		if err != nil {
			return err
		}

		dockerfile, err := packaging.Render(variant, recipe)
		if err != nil {
			return err
		}
		c, err := packaging.Inspect(strings.NewReader(dockerfile))
		if err != nil {
			return err
		}
		if vs := packaging.Verify(c, recipe); len(vs) > 0 {
			return fmt.Errorf("rendered %s violates the contract: %v", variant.FileName(), vs)
		}

		if missing := c.MissingSources(contextDir); len(missing) > 0 {
			return fmt.Errorf("build context %s lacks %s", contextDir, strings.Join(missing, ", "))
		}
		buildContext, err := packaging.Context(contextDir, dockerfile)
		if err != nil {
			return err
		}

		client, err := docker.NewClient(docker.WithLogger(appLogger))
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if err := client.Ping(ctx); err != nil {
			return err
		}

		if len(tags) == 0 {
			tags = []string{"agent2000:" + string(variant)}
		}
		imageID, err := client.Build(ctx, buildContext, docker.BuildOptions{
			Tags:    tags,
			NoCache: noCache,
			Pull:    pull,
			Labels: map[string]string{
				"org.opencontainers.image.title":   "agent2000",
				"org.opencontainers.image.version": strings.TrimSpace(agent2000.Version),
				"agent2000.variant":                string(variant),
			},
		}, os.Stderr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", imageID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().String("context", ".", "Source directory sent as the build context")
	buildCmd.Flags().StringSliceP("tag", "t", nil, "Image tag (repeatable; default agent2000:<variant>)")
	buildCmd.Flags().Bool("no-cache", false, "Do not use the build cache")
	buildCmd.Flags().Bool("pull", false, "Always pull the base image")
	recipeFlag(buildCmd)
}
