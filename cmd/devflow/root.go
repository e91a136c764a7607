package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/metalagman/devflow/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var (
	cfgFile     string
	profileFlag string
	debug       bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "devflow",
		Short:         "devflow turns a user story into a reviewed, committed change",
		Version:       version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.Init(debug)
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path (yaml or json)")
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "config profile to use")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(pruneCmd())
	root.AddCommand(toolCmd())
	root.AddCommand(mcpCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
