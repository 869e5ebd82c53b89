package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/lifecycle"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/reconciler"
	"github.com/cuemby/hutch/pkg/relation"
	"github.com/cuemby/hutch/pkg/secrets"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/systemd"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hutch",
	Short: "Hutch - Gitea server and act_runner operator",
	Long: `Hutch installs, configures and supervises a Gitea git server and
its act_runner build agent on a single host, reacting to lifecycle
events delivered by the controller and reporting unit status back.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: true,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Hutch version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Options file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Hutch version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
		},
	})
}

// runtime bundles the long-lived components a command needs to drive
// a reconciliation pass on this host.
type runtime struct {
	store   storage.Store
	secrets *secrets.Store
	adapter *relation.Adapter
	units   *systemd.Manager
	driver  *reconciler.Driver
}

func newRuntime(c *config.Config, broker *events.Broker) (*runtime, error) {
	store, err := storage.NewBoltStore(c.StateDir)
	if err != nil {
		return nil, err
	}

	sec, err := secrets.NewStore(store, unitID())
	if err != nil {
		store.Close()
		return nil, err
	}

	adapter, err := relation.NewAdapter(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	units := systemd.NewManager()
	controller := lifecycle.NewController(units, sec)

	return &runtime{
		store:   store,
		secrets: sec,
		adapter: adapter,
		units:   units,
		driver:  reconciler.NewDriver(c, store, sec, controller, adapter, broker),
	}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		logger := log.WithComponent("main")
		logger.Warn().Err(err).Msg("failed to close state store")
	}
}

// unitID identifies this host's state for secret key derivation. The
// derived key must stay stable across restarts on the same host.
func unitID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return "hutch/" + host
}
