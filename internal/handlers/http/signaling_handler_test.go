package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	webrtcsdp "github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
	pkgerrors "webrtc-gateway/pkg/errors"
)

type stubPeerManager struct {
	mu            sync.Mutex
	exhausted     bool
	unknownPeer   bool
	lastCandidate domain.ICECandidate
}

var _ ports.PeerManager = (*stubPeerManager)(nil)

func (s *stubPeerManager) CreatePeer(ctx context.Context, offer webrtcsdp.SessionDescription) (domain.PeerID, webrtcsdp.SessionDescription, error) {
	if s.exhausted {
		return "", webrtcsdp.SessionDescription{}, pkgerrors.NewExhaustedError()
	}
	if offer.SDP == "" {
		return "", webrtcsdp.SessionDescription{}, pkgerrors.NewInvalidOfferError("empty sdp")
	}
	return "1-aabbccdd", webrtcsdp.SessionDescription{Type: webrtcsdp.SDPTypeAnswer, SDP: "v=0answer"}, nil
}

func (s *stubPeerManager) AddRemoteCandidate(ctx context.Context, id domain.PeerID, candidate domain.ICECandidate) error {
	if s.unknownPeer {
		return pkgerrors.NewUnknownPeerError(string(id))
	}
	s.mu.Lock()
	s.lastCandidate = candidate
	s.mu.Unlock()
	return nil
}

func (s *stubPeerManager) DrainLocalCandidates(id domain.PeerID) ([]domain.ICECandidate, error) {
	return nil, nil
}

func (s *stubPeerManager) WriteVideoSample(sample *domain.VideoSample, duration int64) {}
func (s *stubPeerManager) WriteAudioSample(sample *domain.AudioSample, duration int64) {}
func (s *stubPeerManager) Snapshot() []domain.PeerSnapshot                            { return nil }
func (s *stubPeerManager) PeerCount() int                                             { return 2 }
func (s *stubPeerManager) Close(ctx context.Context) error                           { return nil }

type stubMetrics struct{}

func (stubMetrics) Snapshot(peerCount int, producerConnected bool) domain.GatewayStats {
	return domain.GatewayStats{
		DroppedVideoFrames: 3,
		DroppedAudioFrames: 1,
		ConnectedPeers:     peerCount,
		ProducerConnected:  producerConnected,
	}
}

type stubProducer struct{ connected bool }

func (s stubProducer) IsConnected() bool { return s.connected }

type stubReady struct{ err error }

func (s stubReady) Ready(ctx context.Context) error { return s.err }

func newTestRouter(h *SignalingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func TestOffer_Success_ReturnsAnswerWithPeerIDHeader(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{connected: true}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	body, _ := json.Marshal(map[string]string{"sdp": "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", "type": "offer"})
	req, _ := http.NewRequest(http.MethodPost, "/webrtc/offer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Peer-ID"); got != "1-aabbccdd" {
		t.Errorf("X-Peer-ID = %q", got)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["type"] != "answer" {
		t.Errorf("type = %q, want answer", resp["type"])
	}
}

func TestOffer_Exhausted_Returns503(t *testing.T) {
	pm := &stubPeerManager{exhausted: true}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	body, _ := json.Marshal(map[string]string{"sdp": "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", "type": "offer"})
	req, _ := http.NewRequest(http.MethodPost, "/webrtc/offer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "exhausted" {
		t.Errorf("error = %q", resp["error"])
	}
	if _, ok := resp["details"]; ok {
		t.Errorf("unexpected details field in error body: %v", resp)
	}
}

func TestOffer_MalformedBody_Returns400(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	req, _ := http.NewRequest(http.MethodPost, "/webrtc/offer", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCandidate_Success(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	body, _ := json.Marshal(map[string]interface{}{
		"candidate":     "candidate:1 1 UDP 1 127.0.0.1 9 typ host",
		"sdpMid":        "0",
		"sdpMLineIndex": 0,
	})
	req, _ := http.NewRequest(http.MethodPost, "/webrtc/candidate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Peer-ID", "1-aabbccdd")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["peer_id"] != "1-aabbccdd" {
		t.Errorf("peer_id = %v", resp["peer_id"])
	}
	if pm.lastCandidate.Candidate == "" {
		t.Error("expected candidate to be forwarded to peer manager")
	}
}

func TestCandidate_MissingPeerIDHeader_Returns400(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	body, _ := json.Marshal(map[string]string{"candidate": "candidate:1 1 UDP 1 127.0.0.1 9 typ host"})
	req, _ := http.NewRequest(http.MethodPost, "/webrtc/candidate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCandidate_UnknownPeer_Returns404(t *testing.T) {
	pm := &stubPeerManager{unknownPeer: true}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	body, _ := json.Marshal(map[string]string{"candidate": "candidate:1 1 UDP 1 127.0.0.1 9 typ host"})
	req, _ := http.NewRequest(http.MethodPost, "/webrtc/candidate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Peer-ID", "missing")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealth_ReportsPeersAndDropCounters(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{connected: true}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	req, _ := http.NewRequest(http.MethodGet, "/webrtc/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
	if resp["peers"].(float64) != 2 {
		t.Errorf("peers = %v", resp["peers"])
	}
	if resp["producer_connected"] != true {
		t.Errorf("producer_connected = %v", resp["producer_connected"])
	}
	if resp["dropped_video_frames"].(float64) != 3 {
		t.Errorf("dropped_video_frames = %v", resp["dropped_video_frames"])
	}
}

func TestReady_SinkUnreachable_Returns503(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{err: context.DeadlineExceeded}, zap.NewNop())
	router := newTestRouter(h)

	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestReady_SinkHealthy_Returns200(t *testing.T) {
	pm := &stubPeerManager{}
	h := NewSignalingHandler(pm, stubMetrics{}, stubProducer{}, stubReady{}, zap.NewNop())
	router := newTestRouter(h)

	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
