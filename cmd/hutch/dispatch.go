package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/systemd"
	"github.com/cuemby/hutch/pkg/types"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch --event KIND",
	Short: "Run one reconciliation pass for a lifecycle event",
	Long: `Dispatch a controller-delivered lifecycle event and run a single
reconciliation pass for it. The resulting unit status is printed on
stdout in wire form (waiting, active, blocked:<reason>, error:<reason>).

Examples:
  # Prepare the host for a fresh install
  hutch dispatch --event install

  # Attach downloaded binaries
  hutch dispatch --event resource-attached \
    --resource gitea-binary=/opt/downloads/gitea \
    --resource runner-binary=/opt/downloads/act_runner

  # Deliver database credentials from the relation
  hutch dispatch --event database-relation-changed --relation-file /run/hutch/db.yaml`,
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().String("event", "", "Lifecycle event kind (required)")
	dispatchCmd.Flags().String("relation-file", "", "YAML file with database relation data")
	dispatchCmd.Flags().StringArray("resource", nil, "Attached resource as name=path (repeatable)")
	_ = dispatchCmd.MarkFlagRequired("event")

	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	eventName, _ := cmd.Flags().GetString("event")
	relationFile, _ := cmd.Flags().GetString("relation-file")
	resourceFlags, _ := cmd.Flags().GetStringArray("resource")

	kind, err := types.ParseEventKind(eventName)
	if err != nil {
		return err
	}

	event := types.Event{Kind: kind}

	if relationFile != "" {
		snap, err := loadRelationFile(relationFile)
		if err != nil {
			return err
		}
		event.RelationData = snap
	}

	if len(resourceFlags) > 0 {
		event.Resources = make(map[string]string, len(resourceFlags))
		for _, spec := range resourceFlags {
			name, path, ok := strings.Cut(spec, "=")
			if !ok || name == "" || path == "" {
				return fmt.Errorf("--resource %q is not name=path", spec)
			}
			event.Resources[name] = path
		}
	}

	if !systemd.IsRunning() {
		return fmt.Errorf("systemd is not running on this host")
	}

	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.close()

	status := rt.driver.HandleEvent(cmd.Context(), event)
	fmt.Println(status.String())

	logger := log.WithEvent(string(kind))
	logger.Info().
		Str("status", status.String()).
		Msg("event dispatched")
	return nil
}

// loadRelationFile reads the relation payload the controller wrote for
// this event. Missing fields are tolerated; the resolver decides
// whether the snapshot is complete.
func loadRelationFile(path string) (*types.RelationSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read relation file: %w", err)
	}
	var snap types.RelationSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse relation file %s: %w", path, err)
	}
	return &snap, nil
}
