package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/reconciler"
	"github.com/cuemby/hutch/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last reported unit status",
	Long: `Show the status persisted by the most recent reconciliation pass,
both per managed service and aggregated. Reads only local state; no
pass is run.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := storage.NewBoltStore(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := []string{
		reconciler.OverallStatusKey,
		cfg.GiteaUnit,
		cfg.RunnerUnit,
	}
	for _, key := range keys {
		status, err := store.GetStatus(key)
		switch {
		case storage.IsNotFound(err):
			fmt.Printf("%-16s unknown\n", key)
		case err != nil:
			return err
		default:
			fmt.Printf("%-16s %s\n", key, status.String())
		}
	}
	return nil
}
