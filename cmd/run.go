package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/synapse-agents/synapse/internal/config"
	"github.com/synapse-agents/synapse/internal/container"
)

var (
	runQuery       string
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent swarm",
	Long: "Starts the bus, the tool gateway, and every research agent. With --query\n" +
		"a research workflow runs to completion and the process exits; without it\n" +
		"the swarm idles until interrupted.",
	RunE: runSwarm,
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "Research query to execute")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics", "", "Prometheus listen address (overrides config)")
}

func runSwarm(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMetricsAddr != "" {
		cfg.MetricsAddr = runMetricsAddr
	}

	// No hosting capability is attached in standalone mode, so sampling
	// requests degrade to their original text.
	c, err := container.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Swarm().Run(gctx) })
	if cfg.HeartbeatSpec != "" {
		g.Go(func() error { return c.Heartbeat().Start(gctx) })
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(c.MetricsRegistry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
		fmt.Printf("Metrics on %s/metrics\n", cfg.MetricsAddr)
	}

	fmt.Printf("Swarm running (%d tools registered). Press Ctrl+C to stop.\n", len(c.Gateway().Tools()))

	if runQuery != "" {
		g.Go(func() error {
			if err := c.Swarm().Orchestrator().StartResearch(runQuery); err != nil {
				return fmt.Errorf("start research: %w", err)
			}
			select {
			case <-c.Swarm().Orchestrator().Done():
				if c.Swarm().Orchestrator().Failed() {
					fmt.Println("Research failed; see logs.")
				} else {
					fmt.Println("Research complete.")
				}
				stop()
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "swarm error: %v\n", err)
		return err
	}
	c.Swarm().Shutdown()
	fmt.Println("Shutdown complete.")
	return nil
}
