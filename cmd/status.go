package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapse-agents/synapse/internal/config"
	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/sampling"
	"github.com/synapse-agents/synapse/internal/tools"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show synapse configuration status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Println("synapse status")
	fmt.Println()

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗ (using defaults)"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:      %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Println("Roots:")
	for _, root := range cfg.AllowedRoots {
		mark := "✗ (will be created)"
		if _, err := os.Stat(root); err == nil {
			mark = "✓"
		}
		fmt.Printf("  %s %s\n", root, mark)
	}

	fmt.Printf("Reports:     %s\n", cfg.ReportDir)
	fmt.Printf("Queues:      %d messages per agent\n", cfg.QueueCapacity)
	fmt.Printf("Timeouts:    route %s, invoke %s, sampling %s\n",
		cfg.RouteTimeout(), cfg.InvokeTimeout(), cfg.SamplingTimeout())
	if cfg.HeartbeatSpec != "" {
		fmt.Printf("Heartbeat:   %s\n", cfg.HeartbeatSpec)
	} else {
		fmt.Println("Heartbeat:   disabled")
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("Metrics:     %s\n", cfg.MetricsAddr)
	} else {
		fmt.Println("Metrics:     disabled")
	}

	fmt.Println("Tools:")
	for _, p := range []gateway.Provider{
		tools.SaveFileProvider(),
		tools.ReadFileProvider(),
		tools.SearchWebProvider(),
		tools.BrowseExtractProvider(),
		tools.RephraseProvider(sampling.New(nil, sampling.Options{})),
	} {
		fmt.Printf("  %-20s %s\n", p.Name, p.Description)
	}
	return nil
}
