// cmd/dtsubridge/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "dtsubridge",
		Short:        "DTSU666 Modbus RTU bridge, emulator and reader",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config")

	root.AddCommand(
		&cobra.Command{
			Use:   "bridge",
			Short: "Forward a real meter to the downstream master",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, log, err := setup(cfgPath)
				if err != nil {
					return err
				}
				return runBridge(cmd.Context(), c, log)
			},
		},
		&cobra.Command{
			Use:   "emulate",
			Short: "Serve test values as a standalone meter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, log, err := setup(cfgPath)
				if err != nil {
					return err
				}
				return runEmulator(cmd.Context(), c, false, log)
			},
		},
		&cobra.Command{
			Use:   "debug",
			Short: "Emulate and log every master read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, log, err := setup(cfgPath)
				if err != nil {
					return err
				}
				return runEmulator(cmd.Context(), c, true, log)
			},
		},
		&cobra.Command{
			Use:   "read",
			Short: "Read the four-wire measurement set once and print it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, log, err := setup(cfgPath)
				if err != nil {
					return err
				}
				return runRead(cmd.Context(), c, cmd.OutOrStdout(), log)
			},
		},
	)

	return root
}
