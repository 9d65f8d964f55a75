package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/internal/config"
)

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Editorial notification service",
	Long: `Creates, mails and reconciles editorial workflow notifications.

Configuration comes from an optional YAML file and EDITORIAL_* environment
variables, e.g. EDITORIAL_DATABASE_URL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("database-url", "", "postgres DSN")
	cobra.CheckErr(v.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url")))
	cobra.CheckErr(v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, publishEventCmd, unsubscribeLinkCmd, testEmailCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
