package p2p

import (
	"github.com/libp2p/go-libp2p/core/network"
	peer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
)

// DiscoveryServiceTag scopes mDNS announcements to this cluster. Nodes
// advertising a different tag are invisible to each other even on the same
// LAN segment.
const DiscoveryServiceTag = "axon-cluster"

type discoveryNotifee struct {
	svc *Service
}

// HandlePeerFound runs on every mDNS answer, including our own.
func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	s := n.svc
	if pi.ID == s.host.ID() {
		return
	}
	s.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.TempAddrTTL)
	s.emit(PeerFound{Peer: pi.ID})
}

// connectionNotifiee mirrors swarm connection state onto the event stream.
// A peer counts as lost only when its last connection closes, so parallel
// connections do not produce spurious PeerLost events.
func (s *Service) connectionNotifiee() network.Notifiee {
	return &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			s.emit(PeerFound{Peer: c.RemotePeer()})
		},
		DisconnectedF: func(nw network.Network, c network.Conn) {
			p := c.RemotePeer()
			if nw.Connectedness(p) != network.Connected {
				s.emit(PeerLost{Peer: p})
			}
		},
	}
}
