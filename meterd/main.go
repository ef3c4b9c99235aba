package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   = "info"
	configPath = "config.yaml"
	listenAddr = ""
	source     = "serial"
	serialPort = ""
)

// NewCommand .
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meterd",
		Short: "meterd is a headless flow metering daemon with an HTTP API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "config.yaml", "configuration file path")
	flags.StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	flags.StringVar(&source, "source", "serial", "frame source (serial, gpio or mock)")
	flags.StringVarP(&serialPort, "port", "p", "", "serial port override")

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.Kitchen,
	})

	return nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
