package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xharryriddle/axon-cluster/core/node"
	"github.com/0xharryriddle/axon-cluster/core/p2p"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt into the cluster and print the answer",
		Long: `Join the network, wait for the first leader to appear, send it the
prompt, and print the answer on stdout. Exits non-zero when the request
fails or is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args[0])
		},
	}
}

func runAsk(cmd *cobra.Command, prompt string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

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

	sub := node.NewSubordinate(logr, transport, prompt)
	sub.RegisterService(transport)

	answer, err := sub.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
