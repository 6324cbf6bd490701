package cmd

import (
	"github.com/spf13/cobra"
)

const (
	flagConfigPath     = "config"
	flagEnvFile        = "env-file"
	flagLogLevel       = "log-level"
	flagJSON           = "log-json"
	flagMetricsAddress = "metrics-address"
	flagMetricsPort    = "metrics-port"
	flagQueueSize      = "queue-size"
)

func addAppPersistantFlags(cmd *cobra.Command, a *AppState) *cobra.Command {
	cmd.PersistentFlags().StringVar(&a.ConfigPath, flagConfigPath, defaultConfigPath, "file path of config file")
	cmd.PersistentFlags().StringVar(&a.EnvFile, flagEnvFile, ".env", "optional env file loaded before the config is expanded")
	cmd.PersistentFlags().StringVar(&a.LogLevel, flagLogLevel, "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.JSONLogs, flagJSON, false, "output logs in json format")
	return cmd
}

func addStartFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagMetricsAddress, "0.0.0.0", "address to serve prometheus metrics on")
	cmd.Flags().Int16(flagMetricsPort, 2112, "customize Prometheus metrics port")
	cmd.Flags().Int(flagQueueSize, 10000, "capacity of the step processing queue")
	return cmd
}
