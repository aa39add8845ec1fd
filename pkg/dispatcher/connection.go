// Package dispatcher implements the per-connection request state machine:
// it turns inbound protocol messages into registry operations and composes
// the responses (§4.7).
package dispatcher

import (
	"net"
	"sync/atomic"

	"github.com/maxwell-dev/maxwell-master/pkg/registry"
)

var connCounter atomic.Uint64

// Connection is the per-connection state the dispatcher threads through
// every handler call. It is owned by exactly one goroutine (one worker, one
// connection) and needs no locking (§5).
type Connection struct {
	ID       uint64
	PeerIP   net.IP
	PeerPort int

	NodeType registry.NodeType
	NodeID   string
}

// NewConnection allocates a monotone connection id and records the peer
// address observed by the transport.
func NewConnection(peerIP net.IP, peerPort int) *Connection {
	return &Connection{
		ID:       connCounter.Add(1),
		PeerIP:   peerIP,
		PeerPort: peerPort,
	}
}
