package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapse-agents/synapse/internal/config"
	"github.com/synapse-agents/synapse/internal/roots"
)

var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Check paths against the configured filesystem roots",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	set, err := roots.NewSet(cfg.AllowedRoots)
	if err != nil {
		return fmt.Errorf("resolve roots: %w", err)
	}

	denied := 0
	for _, path := range args {
		if err := set.IsAllowed(path); err != nil {
			fmt.Printf("✗ %s\n    %v\n", path, err)
			denied++
			continue
		}
		fmt.Printf("✓ %s\n", path)
	}
	if denied > 0 {
		return fmt.Errorf("%d of %d paths denied", denied, len(args))
	}
	return nil
}
