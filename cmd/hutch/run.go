package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/health"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/reconciler"
	"github.com/cuemby/hutch/pkg/systemd"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation agent",
	Long: `Run hutch as a long-lived agent. The agent performs periodic
update-status passes, keeps the managed units alive, and serves
metrics plus health endpoints over HTTP.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for metrics and health endpoints")
	runCmd.Flags().Duration("status-interval", 5*time.Minute, "Interval between update-status passes")

	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	statusInterval, _ := cmd.Flags().GetDuration("status-interval")

	if !systemd.IsRunning() {
		return fmt.Errorf("systemd is not running on this host")
	}

	logger := log.WithComponent("agent")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker.Subscribe())

	rt, err := newRuntime(cfg, broker)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.driver.Interval = statusInterval

	metrics.SetVersion(Version)
	metrics.RegisterComponent("storage", true, "state store open")
	metrics.RegisterComponent("systemd", true, "bus reachable")

	collector := metrics.NewCollector(
		[]string{reconciler.GiteaService(cfg).UnitName(), reconciler.RunnerService(cfg).UnitName()},
		rt.units.Running,
		func() string { return string(rt.adapter.Current()) },
	)
	collector.Start()
	defer collector.Stop()

	rt.driver.Start()
	defer rt.driver.Stop()

	probeCtx, stopProbes := context.WithCancel(context.Background())
	defer stopProbes()
	go monitorGitea(probeCtx, cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	server := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	logger.Info().
		Str("metrics_addr", metricsAddr).
		Dur("status_interval", statusInterval).
		Msg("agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown failed")
	}
	return nil
}

// monitorGitea probes the Gitea endpoint on the health-check interval
// and feeds the outcome into the component health report. Plain HTTP
// and HTTPS listeners get a real request; socket-based protocols fall
// back to a TCP connect on the listen address.
func monitorGitea(ctx context.Context, c *config.Config) {
	var checker health.Checker
	switch c.Protocol {
	case "http", "https":
		checker = health.NewHTTPChecker(fmt.Sprintf("%s://127.0.0.1:%s/", c.Protocol, c.HTTPPort()))
	default:
		checker = health.NewTCPChecker(c.ListenAddress)
	}

	hcfg := health.DefaultConfig()
	status := health.NewStatus()
	metrics.RegisterComponent("gitea", true, "not yet probed")

	ticker := time.NewTicker(hcfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, hcfg.Timeout)
			result := checker.Check(checkCtx)
			cancel()
			status.Update(result, hcfg)
			if status.InStartPeriod(hcfg) {
				continue
			}
			metrics.UpdateComponent("gitea", status.Healthy, result.Message)
		}
	}
}

// logEvents mirrors the internal event stream into the log so a pass
// can be traced without scraping metrics.
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Info().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Fields(map[string]interface{}{"metadata": event.Metadata}).
			Msg(event.Message)
	}
}
