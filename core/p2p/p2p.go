// Package p2p runs the private libp2p swarm: the PSK-gated host, local
// network discovery, and the inference request/response exchange. The
// service never interprets requests; it surfaces everything that happens
// on the network as events for the node loop to act on.
package p2p

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	host "github.com/libp2p/go-libp2p/core/host"
	peer "github.com/libp2p/go-libp2p/core/peer"
	pnet "github.com/libp2p/go-libp2p/core/pnet"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds one outbound exchange end to end: dialing,
// writing the request, and waiting for the response frame.
const DefaultRequestTimeout = 120 * time.Second

// eventBufferSize absorbs discovery bursts so swarm callbacks rarely block
// on a busy consumer.
const eventBufferSize = 64

type Config struct {
	ListenPort     int
	PSK            pnet.PSK
	Bootstrap      []string
	RequestTimeout time.Duration
}

type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
	host   host.Host
	disc   mdns.Service

	events  chan Event
	nextID  atomic.Uint64
	timeout time.Duration

	bootstrapPeers []peer.AddrInfo
}

func New(ctx context.Context, log *zap.Logger, cfg Config) (*Service, error) {
	h, err := newHost(cfg.PSK, cfg.ListenPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	var peers []peer.AddrInfo
	for _, addr := range cfg.Bootstrap {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			log.Warn("invalid bootstrap address", zap.String("addr", addr))
			continue
		}
		pi, err := peer.AddrInfoFromP2pAddr(maddr)
		if err == nil {
			peers = append(peers, *pi)
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	sctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:            sctx,
		cancel:         cancel,
		log:            log,
		host:           h,
		events:         make(chan Event, eventBufferSize),
		timeout:        timeout,
		bootstrapPeers: peers,
	}, nil
}

func (s *Service) Name() string { return "p2p" }

// Events returns the stream the node loop consumes. The channel stays open
// for the service's lifetime.
func (s *Service) Events() <-chan Event { return s.events }

func (s *Service) Start(ctx context.Context) error {
	s.log.Info("Starting P2P subsystem",
		zap.String("id", s.host.ID().String()),
		zap.Bool("private_network", true))

	s.host.SetStreamHandler(ProtocolID, s.handleStream)
	s.host.Network().Notify(s.connectionNotifiee())

	s.disc = mdns.NewMdnsService(s.host, DiscoveryServiceTag, &discoveryNotifee{svc: s})
	if err := s.disc.Start(); err != nil {
		return fmt.Errorf("failed to start mdns discovery: %w", err)
	}

	for _, bp := range s.bootstrapPeers {
		if err := s.host.Connect(s.ctx, bp); err != nil {
			s.log.Warn("Failed to connect bootstrap peer", zap.String("peer", bp.ID.String()), zap.Error(err))
		} else {
			s.log.Info("Connected bootstrap peer", zap.String("peer", bp.ID.String()))
		}
	}

	for _, addr := range s.host.Addrs() {
		s.log.Info("Listening", zap.String("addr", fmt.Sprintf("%s/p2p/%s", addr, s.host.ID())))
	}
	return nil
}

func (s *Service) Stop() error {
	s.log.Info("Stopping P2P subsystem")
	s.cancel()
	if s.disc != nil {
		if err := s.disc.Close(); err != nil {
			s.log.Warn("error closing mdns discovery", zap.Error(err))
		}
	}
	return s.host.Close()
}

// emit delivers ev to the consumer, giving up once the service shuts down.
func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
