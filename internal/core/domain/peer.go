package domain

import "time"

// PeerID identifies a viewer peer session for the lifetime of the process.
// Minted as a monotonic counter concatenated with a random suffix, e.g. "7-3f9a2b7e".
type PeerID string

// PeerState is a peer session's position in its state machine.
type PeerState int

const (
	PeerStateNew PeerState = iota
	PeerStateOffered
	PeerStateAnswered
	PeerStateConnected
	PeerStateFailed
	PeerStateClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerStateNew:
		return "new"
	case PeerStateOffered:
		return "offered"
	case PeerStateAnswered:
		return "answered"
	case PeerStateConnected:
		return "connected"
	case PeerStateFailed:
		return "failed"
	case PeerStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Writable reports whether a session in this state accepts track writes.
// New, Failed and Closed sessions discard writes as no-ops.
func (s PeerState) Writable() bool {
	return s == PeerStateOffered || s == PeerStateAnswered || s == PeerStateConnected
}

// ICECandidate is a trickle-ICE candidate exchanged with a viewer.
type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// PeerQuality carries the RTCP-derived feedback the gateway has observed
// for a session's outbound tracks. It is read-only observability data; it
// never drives a control-plane reaction.
type PeerQuality struct {
	PacketsLost     uint32
	NACKCount       uint32
	PLICount        uint32
	LastReportAt    time.Time
	JitterTimestamp uint32
}

// PeerSnapshot is a read-only, point-in-time view of a peer session, used
// by the signaling and observability surfaces without exposing the live
// session or its lock.
type PeerSnapshot struct {
	PeerID    PeerID
	State     PeerState
	CreatedAt time.Time
	Quality   PeerQuality
}
