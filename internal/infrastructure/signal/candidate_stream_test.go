package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	pionwebrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
	pkgerrors "webrtc-gateway/pkg/errors"
)

// stubPeerManager satisfies ports.PeerManager with just enough behavior to
// drive the candidate stream: one round of candidates, then none, unless
// configured to report the peer as unknown.
type stubPeerManager struct {
	mu         sync.Mutex
	candidates []domain.ICECandidate
	drained    bool
	unknown    bool
}

var _ ports.PeerManager = (*stubPeerManager)(nil)

func (f *stubPeerManager) CreatePeer(ctx context.Context, offer pionwebrtc.SessionDescription) (domain.PeerID, pionwebrtc.SessionDescription, error) {
	return "", pionwebrtc.SessionDescription{}, nil
}

func (f *stubPeerManager) AddRemoteCandidate(ctx context.Context, id domain.PeerID, candidate domain.ICECandidate) error {
	return nil
}

func (f *stubPeerManager) DrainLocalCandidates(id domain.PeerID) ([]domain.ICECandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unknown {
		return nil, pkgerrors.NewUnknownPeerError(string(id))
	}
	if f.drained {
		return nil, nil
	}
	f.drained = true
	return f.candidates, nil
}

func (f *stubPeerManager) WriteVideoSample(sample *domain.VideoSample, duration int64) {}
func (f *stubPeerManager) WriteAudioSample(sample *domain.AudioSample, duration int64) {}
func (f *stubPeerManager) Snapshot() []domain.PeerSnapshot                             { return nil }
func (f *stubPeerManager) PeerCount() int                                              { return 0 }
func (f *stubPeerManager) Close(ctx context.Context) error                            { return nil }

func TestCandidateStream_StreamsCandidatesThenClientDisconnects(t *testing.T) {
	fm := &stubPeerManager{candidates: []domain.ICECandidate{{Candidate: "candidate:1 1 UDP 1 127.0.0.1 9 typ host"}}}
	cs := NewCandidateStream(fm, []string{"*"}, zap.NewNop())

	server := httptest.NewServer(cs)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?peer_id=1-aabbccdd"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got domain.ICECandidate
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal candidate: %v", err)
	}
	if got.Candidate != "candidate:1 1 UDP 1 127.0.0.1 9 typ host" {
		t.Errorf("Candidate = %q", got.Candidate)
	}
}

func TestCandidateStream_MissingPeerID_BadRequest(t *testing.T) {
	fm := &stubPeerManager{}
	cs := NewCandidateStream(fm, []string{"*"}, zap.NewNop())

	server := httptest.NewServer(cs)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without peer_id")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Errorf("expected 400 response, got %v", resp)
	}
}

func TestCandidateStream_UnknownPeer_ClosesConnection(t *testing.T) {
	fm := &stubPeerManager{unknown: true}
	cs := NewCandidateStream(fm, []string{"*"}, zap.NewNop())

	server := httptest.NewServer(cs)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?peer_id=missing"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close for unknown peer")
	}
}
