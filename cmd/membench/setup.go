package main

import (
	"os"

	"github.com/spf13/cobra"

	"membench/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a default config file and check API credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if _, err := os.Stat(path); err == nil {
			cmd.Printf("%s config already exists at %s\n", yellow("•"), path)
		} else {
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			cmd.Printf("%s wrote default config to %s\n", green("✓"), path)
		}

		if cfg.APIKey() != "" {
			cmd.Printf("%s %s is set\n", green("✓"), keyEnvName())
		} else {
			cmd.Printf("%s %s is not set; export it before running benchmarks\n", red("✗"), keyEnvName())
		}

		if err := os.MkdirAll(cfg.MemoryRoot, 0o755); err != nil {
			return err
		}
		cmd.Printf("%s memory root ready at %s\n", green("✓"), cfg.MemoryRoot)
		return nil
	},
}
