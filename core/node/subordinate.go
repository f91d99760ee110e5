package node

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xharryriddle/axon-cluster/core/p2p"
	"github.com/0xharryriddle/axon-cluster/core/protocol"
)

// Subordinate runs the one-shot asking role: wait for the first leader to
// appear, send it a single request, and return that request's outcome. It
// never answers inbound requests.
type Subordinate struct {
	log       *zap.Logger
	transport Transport
	prompt    string
	registry  *Registry

	services []Service
}

func NewSubordinate(log *zap.Logger, transport Transport, prompt string) *Subordinate {
	return &Subordinate{
		log:       log,
		transport: transport,
		prompt:    prompt,
		registry:  NewRegistry(),
	}
}

func (s *Subordinate) RegisterService(sv Service) {
	s.services = append(s.services, sv)
}

// Run drives the subordinate to completion. It returns the answer text, or
// an error when the request failed or ctx expired first. Peers discovered
// after the request is in flight are ignored; a response is accepted even if
// the serving peer was reported lost in the meantime.
func (s *Subordinate) Run(ctx context.Context) (string, error) {
	if err := startServices(ctx, s.log, s.services); err != nil {
		return "", err
	}
	defer stopServices(s.log, s.services)

	s.log.Info("Waiting for a leader node")

	var pending p2p.RequestID
	sent := false

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-s.transport.Events():
			if !ok {
				return "", errors.New("transport event stream closed")
			}
			switch e := ev.(type) {
			case p2p.PeerFound:
				if !s.registry.Add(e.Peer) || sent {
					continue
				}
				s.log.Info("Found leader", zap.String("peer", e.Peer.String()))
				pending = s.transport.SendRequest(e.Peer, protocol.InferenceRequest{Prompt: s.prompt})
				sent = true
				s.log.Info("Sent inference request",
					zap.Uint64("request_id", uint64(pending)),
					zap.String("peer", e.Peer.String()))
			case p2p.PeerLost:
				s.registry.Remove(e.Peer)
				s.log.Info("Leader disconnected", zap.String("peer", e.Peer.String()))
			case p2p.ResponseReceived:
				if !sent || e.ID != pending {
					continue
				}
				return e.Response.Result()
			case p2p.OutboundFailure:
				if !sent || e.ID != pending {
					continue
				}
				return "", fmt.Errorf("request failed: %w", e.Err)
			}
		}
	}
}
