// Package signal implements the optional local-candidate push channel
// (§6.2a): a read-only WebSocket upgrade that streams a session's newly
// generated ICE candidates without the viewer needing to poll.
package signal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
)

// drainInterval is how often the stream checks for newly generated
// candidates. It approximates push without requiring a dedicated
// notification hook on the peer session.
const drainInterval = 100 * time.Millisecond

// CandidateStream serves GET /webrtc/candidates?peer_id=<id>. It never reads
// application messages from the client and carries no authority over the
// peer session's lifecycle; closing it has no side effects beyond freeing
// the socket.
type CandidateStream struct {
	peerManager    ports.PeerManager
	allowedOrigins map[string]struct{}
	permissive     bool
	logger         *zap.Logger
	upgrader       websocket.Upgrader
}

func NewCandidateStream(peerManager ports.PeerManager, allowedOrigins []string, logger *zap.Logger) *CandidateStream {
	cs := &CandidateStream{
		peerManager:    peerManager,
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		logger:         logger.With(zap.String("component", "candidate_stream")),
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			cs.permissive = true
			continue
		}
		cs.allowedOrigins[o] = struct{}{}
	}
	cs.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cs.checkOrigin,
	}
	return cs
}

func (cs *CandidateStream) checkOrigin(r *http.Request) bool {
	if cs.permissive {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := cs.allowedOrigins[origin]
	return ok
}

// ServeHTTP upgrades the connection and streams candidates until the
// client disconnects, the peer session closes, or the request context is
// cancelled.
func (cs *CandidateStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	peerID := domain.PeerID(r.URL.Query().Get("peer_id"))
	if peerID == "" {
		http.Error(w, `{"error":"bad_request","message":"peer_id is required"}`, http.StatusBadRequest)
		return
	}

	conn, err := cs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cs.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			candidates, err := cs.peerManager.DrainLocalCandidates(peerID)
			if err != nil {
				cs.writeClose(conn, websocket.CloseNormalClosure, "unknown peer")
				return
			}
			for _, c := range candidates {
				if err := cs.writeCandidate(conn, c); err != nil {
					return
				}
			}
		}
	}
}

func (cs *CandidateStream) writeCandidate(conn *websocket.Conn, c domain.ICECandidate) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (cs *CandidateStream) writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
