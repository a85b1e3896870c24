package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mycoflow/mycoflow/internal/snapshot"
)

var statusDumpPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last published state snapshot",
	Long: `Reads the JSON snapshot written by the running loop driver each tick
and prints it to stdout. This does not talk to a running process directly;
it is a convenience for reading the same file the mcp "status" tool serves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(statusDumpPath)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDumpPath, "file", snapshot.DefaultDumpPath, "Path to the state snapshot file")
}

func runStatus(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var pretty interface{}
	if err := json.Unmarshal(data, &pretty); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
