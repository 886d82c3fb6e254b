package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapse-agents/synapse/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and report directory",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	for _, root := range cfg.AllowedRoots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create root %s: %w", root, err)
		}
		fmt.Printf("✓ Root at %s\n", root)
	}
	return nil
}
