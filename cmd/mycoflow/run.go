package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mycoflow/mycoflow/internal/config"
	"github.com/mycoflow/mycoflow/internal/logging"
	"github.com/mycoflow/mycoflow/internal/loop"
)

var runVerbose bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reflexive Sense/Infer/Decide/Act loop",
	Long: `Runs the control loop at the configured sample rate until SIGINT/SIGTERM.
SIGHUP triggers a configuration reload on the next tick boundary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoop(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig() (config.Config, error) {
	uci := config.NewUCIReader()
	cfg, err := config.Load(uci)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runLoop(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logLevel := cfg.LogLevel
	if runVerbose {
		logLevel = logging.LevelDebug
	}
	log := logging.New(logLevel)

	d := loop.New(cfg, log)
	defer d.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				d.RequestReload()
			}
		}
	}()

	log.Infof("mycoflow: starting reflexive loop on %s at %.2f Hz", cfg.EgressIface, cfg.SampleHz)
	return d.Run(ctx, loadConfig)
}
