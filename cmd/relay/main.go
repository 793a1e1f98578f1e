// Command relay is the split-context Assuan proxy: "relay agent" runs AT,
// "relay client" runs CM. A cobra root with flag-bound subcommands, each
// loading its config (config.Load with --config, else config.Default())
// before acting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diablodale/gpg-windows-relay/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "relay",
		Short: "relay — split-context Assuan proxy for a local key agent",
		Long:  "Bridges local cryptographic clients to a key agent's loopback Assuan socket across two cooperating processes.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to relay.yaml (defaults to built-in config.Default())")

	root.AddCommand(agentCmd(), clientCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
