package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/api"
	"github.com/0xharryriddle/axon-cluster/core/node"
	"github.com/0xharryriddle/axon-cluster/core/ollama"
	"github.com/0xharryriddle/axon-cluster/core/p2p"
	"github.com/0xharryriddle/axon-cluster/pkg/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a leader node that answers inference requests from peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLeader(cmd, false)
		},
	}
	addLeaderFlags(cmd)
	return cmd
}

func newWebCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run a leader node with the local HTTP API enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLeader(cmd, true)
		},
	}
	addLeaderFlags(cmd)
	cmd.Flags().String("http-addr", "", "HTTP API listen address (overrides config)")
	return cmd
}

func addLeaderFlags(cmd *cobra.Command) {
	cmd.Flags().String("ollama-url", "", "Ollama API endpoint (overrides config)")
	cmd.Flags().String("model", "", "default model served to peers (overrides config)")
	cmd.Flags().Int("port", 0, "p2p listen port (overrides config; 0 lets the OS choose)")
}

func applyLeaderFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("ollama-url") {
		cfg.Ollama.URL, _ = cmd.Flags().GetString("ollama-url")
	}
	if cmd.Flags().Changed("model") {
		cfg.Ollama.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("port") {
		cfg.P2P.ListenPort, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTP.ListenAddr, _ = cmd.Flags().GetString("http-addr")
	}
}

func runLeader(cmd *cobra.Command, withHTTP bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyLeaderFlags(cmd, cfg)

	logr, err := newNodeLogger(cfg)
	if err != nil {
		return err
	}
	defer logr.Sync()

	psk, err := p2p.LoadPSK(cfg.P2P.KeyFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := p2p.New(ctx, logr, p2p.Config{
		ListenPort:     cfg.P2P.ListenPort,
		PSK:            psk,
		Bootstrap:      cfg.P2P.Bootstrap,
		RequestTimeout: cfg.P2P.RequestTimeout,
	})
	if err != nil {
		return err
	}

	backend := ollama.NewClient(cfg.Ollama.URL)
	leader := node.NewLeader(logr, backend, cfg.Ollama.Model)

	n := node.New(logr, transport, leader)
	n.RegisterService(transport)
	if withHTTP {
		n.RegisterService(api.NewServer(logr, n, cfg.HTTP.ListenAddr, cfg.HTTP.AskTimeout))
	}

	logr.Info("Starting leader node",
		zap.String("ollama_url", cfg.Ollama.URL),
		zap.String("model", cfg.Ollama.Model),
		zap.Bool("http_api", withHTTP))
	return n.Run(ctx)
}
