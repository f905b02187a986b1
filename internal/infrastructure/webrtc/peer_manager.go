package webrtc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
	pkgerrors "webrtc-gateway/pkg/errors"
)

// randomSuffix returns a 4-byte hex string used to disambiguate peer IDs
// sharing the same monotonic counter across process restarts.
func randomSuffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Manager owns the peer set (C3): the only component allowed to create,
// remove, or fan media out to sessions.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[domain.PeerID]*session

	nextID atomic.Uint64
	maxPeers int

	onPeerConnected    func(domain.PeerID)
	onPeerDisconnected func(domain.PeerID)
}

var _ ports.PeerManager = (*Manager)(nil)

func NewManager(cfg Config, maxPeers int, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "peer_manager")),
		sessions: make(map[domain.PeerID]*session),
		maxPeers: maxPeers,
	}
}

// OnPeerConnected registers the single subscriber for the connected hook.
func (m *Manager) OnPeerConnected(fn func(domain.PeerID)) {
	m.onPeerConnected = fn
}

// OnPeerDisconnected registers the single subscriber for the disconnected hook.
func (m *Manager) OnPeerDisconnected(fn func(domain.PeerID)) {
	m.onPeerDisconnected = fn
}

func (m *Manager) mintPeerID() domain.PeerID {
	n := m.nextID.Add(1)
	return domain.PeerID(fmt.Sprintf("%d-%s", n, randomSuffix()))
}

func (m *Manager) CreatePeer(ctx context.Context, offer webrtc.SessionDescription) (domain.PeerID, webrtc.SessionDescription, error) {
	m.mu.Lock()
	if m.maxPeers > 0 && len(m.sessions) >= m.maxPeers {
		m.mu.Unlock()
		return "", webrtc.SessionDescription{}, pkgerrors.NewExhaustedError()
	}
	m.mu.Unlock()

	id := m.mintPeerID()
	sess, err := newSession(id, m.cfg, m.logger, m.handlePeerConnected, m.handlePeerDisconnected)
	if err != nil {
		return "", webrtc.SessionDescription{}, pkgerrors.NewInvalidOfferError(err.Error())
	}

	answer, err := sess.applyOffer(offer)
	if err != nil {
		sess.close()
		return "", webrtc.SessionDescription{}, pkgerrors.NewInvalidOfferError(err.Error())
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return id, answer, nil
}

func (m *Manager) AddRemoteCandidate(ctx context.Context, id domain.PeerID, candidate domain.ICECandidate) error {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return pkgerrors.NewUnknownPeerError(string(id))
	}
	if err := sess.addRemoteCandidate(candidate); err != nil {
		return pkgerrors.NewInvalidCandidateError(err.Error())
	}
	return nil
}

func (m *Manager) DrainLocalCandidates(id domain.PeerID) ([]domain.ICECandidate, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewUnknownPeerError(string(id))
	}
	return sess.drainLocalCandidates(), nil
}

// WriteVideoSample fans a video sample out to every writable session.
// Individual write failures are logged and counted, never propagated.
func (m *Manager) WriteVideoSample(sample *domain.VideoSample, duration int64) {
	for _, sess := range m.liveSessions() {
		if err := sess.writeVideo(sample, time.Duration(duration)); err != nil {
			m.logger.Warn("video write failed", zap.String("peer_id", string(sess.id)), zap.Error(err))
		}
	}
}

// WriteAudioSample fans an audio sample out to every writable session.
func (m *Manager) WriteAudioSample(sample *domain.AudioSample, duration int64) {
	for _, sess := range m.liveSessions() {
		if err := sess.writeAudio(sample, time.Duration(duration)); err != nil {
			m.logger.Warn("audio write failed", zap.String("peer_id", string(sess.id)), zap.Error(err))
		}
	}
}

// liveSessions copies the current session list under the read lock and
// releases it before the caller invokes any writer, per the fan-out
// ordering rule: sessions are never borrowed across a suspension point
// that could outlive the reader hold.
func (m *Manager) liveSessions() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

func (m *Manager) Snapshot() []domain.PeerSnapshot {
	sessions := m.liveSessions()
	out := make([]domain.PeerSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.snapshot())
	}
	return out
}

func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		sessions = append(sessions, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, sess := range sessions {
			sess.close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) handlePeerConnected(id domain.PeerID) {
	if m.onPeerConnected != nil {
		m.onPeerConnected(id)
	}
}

func (m *Manager) handlePeerDisconnected(id domain.PeerID) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		sess.close()
	}

	if m.onPeerDisconnected != nil {
		m.onPeerDisconnected(id)
	}
}
