package main

import (
	"github.com/spf13/cobra"
	"github.com/stemflow/stemflow/internal/config"
	"github.com/stemflow/stemflow/pkg/log"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "stemflow-api",
	Short:        "Stem ingestion api, worker webhooks and notification sockets",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// setupLogging replaces the global zap logger. The returned func restores it and flushes.
func setupLogging(cfg *config.Config) func() {
	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}
