// Package node contains the roles a cluster process can take and the event
// loop that drives them. All coordination state (peer registry, in-flight
// requests) is owned by a single goroutine; transport events and external
// commands are funneled into it over channels.
package node

import (
	"context"
	"errors"
	"fmt"

	peer "github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/p2p"
	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

// Service is a subsystem started with the node and stopped with it.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Transport is the slice of the p2p service the node loop drives.
type Transport interface {
	Events() <-chan p2p.Event
	SendRequest(to peer.ID, req protocol.InferenceRequest) p2p.RequestID
}

// Node runs the leader role: it answers requests from peers and, when asked
// through Ask, forwards prompts to other leaders on the network.
type Node struct {
	log        *zap.Logger
	transport  Transport
	leader     *Leader
	registry   *Registry
	correlator *Correlator
	commands   chan AskCommand

	services []Service
}

func New(log *zap.Logger, transport Transport, leader *Leader) *Node {
	return &Node{
		log:        log,
		transport:  transport,
		leader:     leader,
		registry:   NewRegistry(),
		correlator: NewCorrelator(),
		commands:   make(chan AskCommand, commandQueueSize),
	}
}

func (n *Node) RegisterService(s Service) {
	n.services = append(n.services, s)
}

// Ask submits prompt to the cluster and waits for the outcome. It may be
// called from any goroutine. ctx bounds the whole wait, enqueueing included;
// on expiry the in-flight request is abandoned and any late outcome dropped.
func (n *Node) Ask(ctx context.Context, prompt string) (string, error) {
	slot := make(chan AskResult, 1)

	select {
	case n.commands <- AskCommand{Prompt: prompt, Reply: slot}:
	case <-ctx.Done():
		return "", fmt.Errorf("command queue unavailable: %w", ctx.Err())
	}

	select {
	case res := <-slot:
		return res.Answer, res.Err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("request timed out")
		}
		return "", ctx.Err()
	}
}

// Run starts the registered services and processes events until ctx is
// canceled. It owns all node state; nothing else touches the registry or
// correlator registrations while it runs.
func (n *Node) Run(ctx context.Context) error {
	if err := startServices(ctx, n.log, n.services); err != nil {
		return err
	}
	defer stopServices(n.log, n.services)

	n.log.Info("Node running", zap.String("role", "leader"))
	for {
		select {
		case <-ctx.Done():
			n.log.Info("Shutting down node")
			n.correlator.FailAll(errors.New("node shutting down"))
			return nil
		case cmd := <-n.commands:
			n.handleAsk(cmd)
		case ev, ok := <-n.transport.Events():
			if !ok {
				return errors.New("transport event stream closed")
			}
			n.handleEvent(ctx, ev)
		}
	}
}

func (n *Node) handleAsk(cmd AskCommand) {
	target, ok := n.registry.Pick()
	if !ok {
		n.log.Warn("ask received with no known peer")
		cmd.Reply <- AskResult{Err: ErrNoPeer}
		return
	}

	id := n.transport.SendRequest(target, protocol.InferenceRequest{Prompt: cmd.Prompt})
	n.correlator.Register(id, cmd.Reply)
	n.log.Info("Dispatched ask to peer",
		zap.Uint64("request_id", uint64(id)),
		zap.String("peer", target.String()))
}

func (n *Node) handleEvent(ctx context.Context, ev p2p.Event) {
	switch e := ev.(type) {
	case p2p.PeerFound:
		if n.registry.Add(e.Peer) {
			n.log.Info("Discovered peer",
				zap.String("peer", e.Peer.String()),
				zap.Int("known", n.registry.Len()))
		}
	case p2p.PeerLost:
		if n.registry.Contains(e.Peer) {
			n.registry.Remove(e.Peer)
			n.log.Info("Peer expired",
				zap.String("peer", e.Peer.String()),
				zap.Int("known", n.registry.Len()))
		}
	case p2p.InboundRequest:
		// Serving blocks on the backend; never stall the loop for it.
		go n.leader.Serve(ctx, e.From.String(), e.Request, e.Reply)
	case p2p.ResponseReceived:
		var res AskResult
		res.Answer, res.Err = e.Response.Result()
		if !n.correlator.Resolve(e.ID, res) {
			n.log.Debug("response for unknown request", zap.Uint64("request_id", uint64(e.ID)))
		}
	case p2p.OutboundFailure:
		n.log.Warn("outbound request failed",
			zap.Uint64("request_id", uint64(e.ID)),
			zap.String("peer", e.Peer.String()),
			zap.Error(e.Err))
		if !n.correlator.Resolve(e.ID, AskResult{Err: e.Err}) {
			n.log.Debug("failure for unknown request", zap.Uint64("request_id", uint64(e.ID)))
		}
	default:
		n.log.Debug("unhandled transport event", zap.Any("event", ev))
	}
}

func startServices(ctx context.Context, log *zap.Logger, services []Service) error {
	for i, s := range services {
		if err := s.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if serr := services[j].Stop(); serr != nil {
					log.Warn("Error stopping service", zap.String("name", services[j].Name()), zap.Error(serr))
				}
			}
			return fmt.Errorf("failed to start service %s: %w", s.Name(), err)
		}
		log.Info("Started service", zap.String("name", s.Name()))
	}
	return nil
}

func stopServices(log *zap.Logger, services []Service) {
	for _, s := range services {
		log.Info("Stopping service", zap.String("name", s.Name()))
		if err := s.Stop(); err != nil {
			log.Warn("Error stopping service", zap.String("name", s.Name()), zap.Error(err))
		}
	}
}
