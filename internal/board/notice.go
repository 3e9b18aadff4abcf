package board

import (
	"fmt"

	roomnet "LiveCanvas/internal/net"
)

type NoticeKind int

const (
	SessionStarted NoticeKind = iota
	PeerJoined
	PeerLeft
	ConnectionChanged
)

func (k NoticeKind) String() string {
	switch k {
	case SessionStarted:
		return "session-started"
	case PeerJoined:
		return "peer-joined"
	case PeerLeft:
		return "peer-left"
	case ConnectionChanged:
		return "connection-changed"
	}
	return "unknown"
}

// Notice is what the surrounding UI hears about: toasts and the
// connection indicator.
type Notice struct {
	Kind  NoticeKind
	Room  string
	Peer  string
	State roomnet.State
}

func (n Notice) String() string {
	switch n.Kind {
	case SessionStarted:
		return fmt.Sprintf("New session started in %s", n.Room)
	case PeerJoined:
		return fmt.Sprintf("%s joined", n.Peer)
	case PeerLeft:
		return fmt.Sprintf("%s left", n.Peer)
	case ConnectionChanged:
		return fmt.Sprintf("Connection %s", n.State)
	}
	return n.Kind.String()
}
