package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentpm/agents"
	"github.com/adalundhe/agentpm/core/config"
	"github.com/adalundhe/agentpm/core/storage"
)

var setupOverwrite bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create tier directories and install stock system profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := config.NewManager(nil)
		if err := manager.Load(); err != nil {
			return err
		}
		cfg := manager.Get()

		for _, dir := range []string{
			cfg.Profiles.ProjectDir,
			cfg.Profiles.UserDir,
			cfg.Training.Dir,
		} {
			if err := storage.EnsureStandardDir(dir); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
		}

		installed, err := agents.Install(cfg.Profiles.SystemDir, setupOverwrite)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "project agents: %s\n", cfg.Profiles.ProjectDir)
		fmt.Fprintf(out, "user agents:    %s\n", cfg.Profiles.UserDir)
		fmt.Fprintf(out, "system agents:  %s (%d stock profiles installed)\n",
			cfg.Profiles.SystemDir, installed)
		fmt.Fprintf(out, "training dir:   %s\n", cfg.Training.Dir)
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupOverwrite, "overwrite", false, "overwrite existing system profiles")
	rootCmd.AddCommand(setupCmd)
}
