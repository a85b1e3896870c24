package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var configDumpCmd = &cobra.Command{
	Use:   "config-dump",
	Short: "Print the fully-overlaid configuration",
	Long: `Loads configuration the same way "run" and "mcp" do -- compiled-in
defaults, then UCI, then MYCOFLOW_ environment variables -- and prints the
result as JSON, for diagnosing which layer a given option actually came
from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigDump()
	},
}

func runConfigDump() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
