package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/action"
	"github.com/cuemby/hutch/pkg/metrics"
)

var registerCmd = &cobra.Command{
	Use:   "register --instance-url URL --token TOKEN",
	Short: "Register the act_runner with a Gitea instance",
	Long: `Register the act_runner binary with a Gitea instance using a
registration token. The runner name and labels default to the
configured options when not given.

Example:
  hutch register --instance-url https://git.example --token abc123`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().String("instance-url", "", "Gitea instance base URL (required)")
	registerCmd.Flags().String("token", "", "Registration token (required)")
	registerCmd.Flags().String("runner-name", "", "Runner name (defaults to runner-name option)")
	registerCmd.Flags().String("labels", "", "Comma-separated labels (defaults to runner-labels option)")
	_ = registerCmd.MarkFlagRequired("instance-url")
	_ = registerCmd.MarkFlagRequired("token")

	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	instanceURL, _ := cmd.Flags().GetString("instance-url")
	token, _ := cmd.Flags().GetString("token")
	runnerName, _ := cmd.Flags().GetString("runner-name")
	labels, _ := cmd.Flags().GetString("labels")

	if runnerName == "" {
		runnerName = cfg.RunnerName
	}
	if labels == "" {
		labels = cfg.RunnerLabels
	}

	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.close()

	registrar := action.NewRegistrar(rt.secrets, action.ExecRunner)
	output, err := registrar.Register(cmd.Context(), action.RegisterParams{
		InstanceURL: instanceURL,
		Token:       token,
		RunnerName:  runnerName,
		Labels:      labels,
	})
	if err != nil {
		metrics.ActionRunsTotal.WithLabelValues("register", "failure").Inc()
		return err
	}
	metrics.ActionRunsTotal.WithLabelValues("register", "success").Inc()

	if output != "" {
		fmt.Println(output)
	}
	fmt.Printf("✓ Runner %s registered with %s\n", runnerName, instanceURL)
	return nil
}
