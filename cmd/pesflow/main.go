// Command pesflow is the operator CLI of the inspection lifecycle engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/config"
	"github.com/goatkit/pesflow/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pesflow",
	Short:         "PES inspection lifecycle operator tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to pesflow.yaml (defaults to ./pesflow.yaml or /etc/pesflow/pesflow.yaml)")
	rootCmd.AddCommand(migrateCmd, policyCmd, schedulerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
