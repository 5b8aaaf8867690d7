package main

import (
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ctxsearch",
		Short:         "Semantic nearest-context search over a text corpus",
		Long:          `Find the corpus lines closest to a query under a choice of word-embedding models.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file (defaults and CS_* env when empty)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level written to stderr")

	core := coreLoader(rootCmd)
	rootCmd.AddCommand(
		NewSearchCmd(core),
		NewModelsCmd(core),
	)
	return rootCmd
}

// coreLoader returns a function that builds the search core from the root
// command's flags on first use.
func coreLoader(root *cobra.Command) func() (*app.Core, error) {
	var (
		core *app.Core
		err  error
	)
	return func() (*app.Core, error) {
		if core != nil || err != nil {
			return core, err
		}
		path, _ := root.PersistentFlags().GetString("config")
		level, _ := root.PersistentFlags().GetString("log-level")
		logger.SetupWriter(root.ErrOrStderr(), level, "text")

		var cfg *config.Config
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
		core, err = app.NewCore(cfg, prometheus.NewRegistry())
		return core, err
	}
}
