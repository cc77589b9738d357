// cmd/hvsup/main.go
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   = "info"
	configPath = "hvsup.yaml"
	daemonAddr = "127.0.0.1:9090"
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hvsup",
		Short:        "hvsup supervises high-voltage power sources over TCP",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "config file path")
	globalFlags.StringVarP(&daemonAddr, "addr", "a", daemonAddr, "daemon listen address (client commands)")

	cmd.AddCommand(
		NewRunCommand(),
		NewEmulateCommand(),
		NewStatusCommand(),
		NewSetVoltageCommand(),
		NewSetCurrentLimitCommand(),
		NewSetPowerCommand(),
	)

	return cmd
}
