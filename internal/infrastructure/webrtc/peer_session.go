// Package webrtc implements the peer session (C4) and peer manager (C3):
// one pion PeerConnection per viewer, the signaling state machine, and
// fan-out of media samples across the peer set.
package webrtc

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
)

const candidateRingSize = 64

// Config configures how every peer session's PeerConnection is constructed.
type Config struct {
	VideoCodec   domain.VideoCodec
	AudioCodec   string // always "opus"
	ICEServers   []webrtc.ICEServer
	PortRangeMin uint16
	PortRangeMax uint16
}

// session wraps one viewer's PeerConnection plus the signaling-state and
// candidate bookkeeping the spec's peer-session state machine requires.
type session struct {
	id        domain.PeerID
	createdAt time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	state domain.PeerState
	pc    *webrtc.PeerConnection

	videoTrack *webrtc.TrackLocalStaticSample
	audioTrack *webrtc.TrackLocalStaticSample

	remoteDescSet    bool
	pendingCandidates []webrtc.ICECandidateInit

	localCandidates []domain.ICECandidate
	candidateCursor int

	quality domain.PeerQuality

	onConnected    func(domain.PeerID)
	onDisconnected func(domain.PeerID)
}

func newSession(id domain.PeerID, cfg Config, logger *zap.Logger, onConnected, onDisconnected func(domain.PeerID)) (*session, error) {
	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRangeMin > 0 && cfg.PortRangeMax > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(cfg.PortRangeMin, cfg.PortRangeMax); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	videoMime := webrtc.MimeTypeH264
	if cfg.VideoCodec == domain.VideoCodecHEVC {
		videoMime = webrtc.MimeTypeH265
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: videoMime}, "video", string(id)+"-video")
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create video track: %w", err)
	}
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", string(id)+"-audio")
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	videoSender, err := pc.AddTrack(videoTrack)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video track: %w", err)
	}
	audioSender, err := pc.AddTrack(audioTrack)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}

	s := &session{
		id:             id,
		createdAt:      time.Now(),
		logger:         logger.With(zap.String("peer_id", string(id))),
		state:          domain.PeerStateNew,
		pc:             pc,
		videoTrack:     videoTrack,
		audioTrack:     audioTrack,
		onConnected:    onConnected,
		onDisconnected: onDisconnected,
	}

	pc.OnICECandidate(s.handleLocalCandidate)
	pc.OnConnectionStateChange(s.handleConnectionStateChange)

	go s.readRTCP(videoSender)
	go s.readRTCP(audioSender)

	return s, nil
}

func (s *session) handleLocalCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()
	entry := domain.ICECandidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		entry.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		entry.SDPMLineIndex = *init.SDPMLineIndex
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.localCandidates) >= candidateRingSize {
		s.localCandidates = s.localCandidates[1:]
		if s.candidateCursor > 0 {
			s.candidateCursor--
		}
	}
	s.localCandidates = append(s.localCandidates, entry)
}

func (s *session) handleConnectionStateChange(state webrtc.PeerConnectionState) {
	s.logger.Info("peer connection state changed", zap.Stringer("state", state))

	s.mu.Lock()
	prev := s.state
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if s.state != domain.PeerStateClosed && s.state != domain.PeerStateFailed {
			s.state = domain.PeerStateConnected
		}
	case webrtc.PeerConnectionStateFailed:
		s.state = domain.PeerStateFailed
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		if s.state != domain.PeerStateClosed {
			s.state = domain.PeerStateFailed
		}
	}
	cur := s.state
	s.mu.Unlock()

	if cur == domain.PeerStateConnected && prev != domain.PeerStateConnected && s.onConnected != nil {
		s.onConnected(s.id)
	}
	if (cur == domain.PeerStateFailed) && prev != domain.PeerStateFailed && s.onDisconnected != nil {
		s.onDisconnected(s.id)
	}
}

// readRTCP drains PictureLossIndication/TransportLayerNack/ReceiverReport
// feedback for one sender and folds it into the session's quality counters.
// This is read-only observability: it never triggers retransmission or
// bitrate adaptation.
func (s *session) readRTCP(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		s.mu.Lock()
		for _, p := range packets {
			switch pkt := p.(type) {
			case *rtcp.ReceiverReport:
				for _, r := range pkt.Reports {
					s.quality.PacketsLost += r.TotalLost
					s.quality.JitterTimestamp = r.Jitter
				}
				s.quality.LastReportAt = time.Now()
			case *rtcp.TransportLayerNack:
				s.quality.NACKCount += uint32(len(pkt.Nacks))
				s.quality.LastReportAt = time.Now()
			case *rtcp.PictureLossIndication:
				s.quality.PLICount++
				s.quality.LastReportAt = time.Now()
			}
		}
		s.mu.Unlock()
	}
}

func (s *session) applyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}

	s.mu.Lock()
	s.state = domain.PeerStateOffered
	s.mu.Unlock()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	s.mu.Lock()
	s.state = domain.PeerStateAnswered
	s.remoteDescSet = true
	pending := s.pendingCandidates
	s.pendingCandidates = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.logger.Warn("failed to apply queued candidate", zap.Error(err))
		}
	}

	return answer, nil
}

func (s *session) addRemoteCandidate(candidate domain.ICECandidate) error {
	init := webrtc.ICECandidateInit{Candidate: candidate.Candidate}
	if candidate.SDPMid != "" {
		mid := candidate.SDPMid
		init.SDPMid = &mid
	}
	idx := candidate.SDPMLineIndex
	init.SDPMLineIndex = &idx

	s.mu.Lock()
	if !s.remoteDescSet {
		s.pendingCandidates = append(s.pendingCandidates, init)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.pc.AddICECandidate(init)
}

func (s *session) drainLocalCandidates() []domain.ICECandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidateCursor >= len(s.localCandidates) {
		return nil
	}
	out := make([]domain.ICECandidate, len(s.localCandidates)-s.candidateCursor)
	copy(out, s.localCandidates[s.candidateCursor:])
	s.candidateCursor = len(s.localCandidates)
	return out
}

func (s *session) writable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Writable()
}

func (s *session) writeVideo(sample *domain.VideoSample, duration time.Duration) error {
	if !s.writable() {
		return nil
	}
	return s.videoTrack.WriteSample(media.Sample{Data: sample.Payload, Duration: duration})
}

func (s *session) writeAudio(sample *domain.AudioSample, duration time.Duration) error {
	if !s.writable() {
		return nil
	}
	return s.audioTrack.WriteSample(media.Sample{Data: sample.Payload, Duration: duration})
}

func (s *session) snapshot() domain.PeerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PeerSnapshot{
		PeerID:    s.id,
		State:     s.state,
		CreatedAt: s.createdAt,
		Quality:   s.quality,
	}
}

func (s *session) close() error {
	s.mu.Lock()
	s.state = domain.PeerStateClosed
	s.mu.Unlock()
	return s.pc.Close()
}
