package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mycoflow/mycoflow/internal/config"
	"github.com/mycoflow/mycoflow/internal/controller"
	"github.com/mycoflow/mycoflow/internal/ipc"
	"github.com/mycoflow/mycoflow/internal/logging"
	"github.com/mycoflow/mycoflow/internal/loop"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the reflexive loop and serve operator commands over MCP",
	Long: `Starts the reflexive loop in the background and a JSON-RPC server
implementing the Model Context Protocol (MCP) in the foreground. This lets
an AI agent or operator tool read status and issue policy/persona
overrides (status, policy_get, policy_set, policy_boost, policy_throttle,
persona_list, persona_add, persona_delete) over stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func runMCP(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)

	d := loop.New(cfg, log)
	defer d.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := d.Run(ctx, loadConfig); err != nil {
			log.Errorf("mcp: loop driver exited: %v", err)
		}
	}()

	dep := &ipc.Deps{
		Store:   d.Store,
		Ctrl:    d.Ctrl,
		CtrlCfg: ctrlConfigFrom(cfg),
		Act:     d.Act,
		Persona: d.Persona,
		Log:     log,

		EgressIface:    cfg.EgressIface,
		IngressEnabled: cfg.IngressEnabled,
		IngressIface:   cfg.IngressIface,
	}

	srv := ipc.NewServer(version, dep)
	return srv.Start(ctx)
}

// ctrlConfigFrom extracts the controller-relevant subset of the overlaid
// configuration.
func ctrlConfigFrom(cfg config.Config) controller.Config {
	return controller.Config{
		MaxCPUPct:         cfg.MaxCPUPct,
		RTTMarginFactor:   cfg.RTTMarginFactor,
		MinBandwidthKbit:  cfg.MinBandwidthKbit,
		MaxBandwidthKbit:  cfg.MaxBandwidthKbit,
		BandwidthStepKbit: cfg.BandwidthStepKbit,
	}
}
