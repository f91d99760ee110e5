// axond runs a node of a private peer-to-peer cluster whose members answer
// each other's AI prompts through their local Ollama servers. A node either
// serves its model to the cluster (serve, web) or sends a single prompt into
// it and prints the answer (ask).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/pkg/config"
	"github.com/0xharryriddle/axon-cluster/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "axond: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "axond",
		Short:         "Private P2P AI inference cluster node",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", config.DefaultConfigPath, "path to the YAML config file")
	root.AddCommand(newServeCmd(), newWebCmd(), newAskCmd(), newVersionCmd())
	return root
}

// loadConfig reads the file named by --config. The default path may be
// absent; a path the user named explicitly must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags().Changed("config"))
}

func newNodeLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Node.LogLevel)
}
