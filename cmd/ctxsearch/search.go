package main

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/executor"
	"github.com/spf13/cobra"
)

func NewSearchCmd(core func() (*app.Core, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the corpus lines most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSearchRunner(core),
	}
	cmd.Flags().StringP("model", "m", "", "Embedding model (defaults to the configured default)")
	cmd.Flags().IntP("number", "k", 0, "Maximum results (defaults to the configured top-K)")
	return cmd
}

func makeSearchRunner(core func() (*app.Core, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := core()
		if err != nil {
			return err
		}
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = c.Config.Models.Default
		}
		k, _ := cmd.Flags().GetInt("number")
		if !cmd.Flags().Changed("number") {
			k = c.Config.Models.TopK
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		result, err := c.Executor.Search(cmd.Context(), args[0], model, k)
		if err != nil {
			return fmt.Errorf("search %q: %w", model, err)
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return printResult(cmd, result)
	}
}

func printResult(cmd *cobra.Command, result *executor.SearchResult) error {
	out := cmd.OutOrStdout()
	if result.Message != "" {
		_, err := fmt.Fprintln(out, result.Message)
		return err
	}
	for _, r := range result.Results {
		if _, err := fmt.Fprintf(out, "%.4f  %s\n", r.Score, r.Text); err != nil {
			return err
		}
	}
	return nil
}
