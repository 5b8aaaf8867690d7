package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/app"
	"github.com/spf13/cobra"
)

func NewModelsCmd(core func() (*app.Core, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available for search",
		Args:  cobra.NoArgs,
		RunE:  makeModelsRunner(core),
	}
	cmd.Flags().Bool("build", false, "Build every model index and report its size")
	return cmd
}

func makeModelsRunner(core func() (*app.Core, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, err := core()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		build, _ := cmd.Flags().GetBool("build")
		asJSON, _ := cmd.Flags().GetBool("json")

		if build {
			buildErr := c.Preload(cmd.Context(), 2)
			stats := c.Indices.Stats()
			if asJSON {
				if err := json.NewEncoder(out).Encode(stats); err != nil {
					return err
				}
				return buildErr
			}
			for _, idx := range stats.Indices {
				fmt.Fprintf(out, "%-20s %6d docs %6d dropped %6d words  dim %-4d %s\n",
					idx.Model, idx.Documents, idx.Dropped, idx.Vocabulary, idx.Dimension,
					(time.Duration(idx.BuildDurationMs) * time.Millisecond).String())
			}
			return buildErr
		}

		names := c.Catalog.Names()
		if asJSON {
			return json.NewEncoder(out).Encode(map[string]any{
				"models":  names,
				"default": c.Config.Models.Default,
			})
		}
		for _, name := range names {
			marker := " "
			if name == c.Config.Models.Default {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		return nil
	}
}
