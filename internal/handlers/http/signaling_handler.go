// Package http exposes the gateway's signaling surface (§6.2): SDP
// offer/answer exchange, trickle-ICE candidate relay, and health/readiness
// probes, plus the Prometheus exposition endpoint.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	webrtcsdp "github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
	pkgerrors "webrtc-gateway/pkg/errors"
	"webrtc-gateway/pkg/tracing"
	"webrtc-gateway/pkg/utils"
	"webrtc-gateway/pkg/validation"
)

// ProducerStatus reports whether the IPC producer connection is currently
// live. Satisfied by *ipc.Consumer without importing that package here.
type ProducerStatus interface {
	IsConnected() bool
}

// ReadinessChecker checks the optional stats sink's liveness for /ready.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// MetricsSnapshotter produces the periodic GatewayStats reading exposed via
// health and Prometheus.
type MetricsSnapshotter interface {
	Snapshot(peerCount int, producerConnected bool) domain.GatewayStats
}

// SignalingHandler implements the signaling surface (C5).
type SignalingHandler struct {
	peerManager ports.PeerManager
	metrics     MetricsSnapshotter
	producer    ProducerStatus
	ready       ReadinessChecker
	startedAt   time.Time
	logger      *zap.Logger
}

func NewSignalingHandler(
	peerManager ports.PeerManager,
	metrics MetricsSnapshotter,
	producer ProducerStatus,
	ready ReadinessChecker,
	logger *zap.Logger,
) *SignalingHandler {
	return &SignalingHandler{
		peerManager: peerManager,
		metrics:     metrics,
		producer:    producer,
		ready:       ready,
		startedAt:   time.Now(),
		logger:      logger.With(zap.String("component", "signaling_handler")),
	}
}

// SetupRoutes registers the signaling surface on router.
func (h *SignalingHandler) SetupRoutes(router *gin.Engine) {
	webrtcGroup := router.Group("/webrtc")
	{
		webrtcGroup.POST("/offer", h.Offer)
		webrtcGroup.POST("/candidate", h.Candidate)
		webrtcGroup.GET("/health", h.Health)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ready", h.Ready)
}

type offerRequest struct {
	SDP  string `json:"sdp" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// Offer implements POST /webrtc/offer.
func (h *SignalingHandler) Offer(c *gin.Context) {
	ctx, span := tracing.TraceWebRTC(c.Request.Context(), "offer", "")
	defer span.End()

	var req offerRequest
	if err := c.BindJSON(&req); err != nil {
		writeAppError(c, pkgerrors.NewInvalidOfferError(err.Error()))
		return
	}
	if err := validation.ValidateSDPOffer(req.Type, req.SDP); err != nil {
		writeAppError(c, pkgerrors.NewInvalidOfferError(err.Error()))
		return
	}

	offer := webrtcsdp.SessionDescription{
		Type: webrtcsdp.NewSDPType(req.Type),
		SDP:  req.SDP,
	}

	peerID, answer, err := h.peerManager.CreatePeer(ctx, offer)
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.Header("X-Peer-ID", string(peerID))
	c.JSON(http.StatusOK, gin.H{
		"sdp":  answer.SDP,
		"type": answer.Type.String(),
	})
}

type candidateRequest struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// Candidate implements POST /webrtc/candidate.
func (h *SignalingHandler) Candidate(c *gin.Context) {
	ctx, span := tracing.TraceWebRTC(c.Request.Context(), "candidate", c.GetHeader("X-Peer-ID"))
	defer span.End()

	peerID := domain.PeerID(c.GetHeader("X-Peer-ID"))
	if peerID == "" {
		writeAppError(c, pkgerrors.NewBadRequestError("X-Peer-ID header is required"))
		return
	}

	var req candidateRequest
	if err := c.BindJSON(&req); err != nil {
		writeAppError(c, pkgerrors.NewInvalidCandidateError(err.Error()))
		return
	}
	if err := validation.ValidateICECandidate(req.Candidate, &req.SDPMLineIndex); err != nil {
		writeAppError(c, pkgerrors.NewInvalidCandidateError(err.Error()))
		return
	}

	candidate := domain.ICECandidate{
		Candidate:     req.Candidate,
		SDPMid:        req.SDPMid,
		SDPMLineIndex: req.SDPMLineIndex,
	}

	if err := h.peerManager.AddRemoteCandidate(ctx, peerID, candidate); err != nil {
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"peer_id": string(peerID),
	})
}

// Health implements GET /webrtc/health, supplemented per §4.7 with the
// dropped-frame counters and producer-connection flag.
func (h *SignalingHandler) Health(c *gin.Context) {
	peerCount := h.peerManager.PeerCount()
	producerConnected := h.producer != nil && h.producer.IsConnected()
	stats := h.metrics.Snapshot(peerCount, producerConnected)

	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"peers":                peerCount,
		"uptime":               utils.FormatDuration(time.Since(h.startedAt)),
		"dropped_video_frames": stats.DroppedVideoFrames,
		"dropped_audio_frames": stats.DroppedAudioFrames,
		"producer_connected":   producerConnected,
	})
}

// Ready implements GET /ready: checks the optional stats sink, never the
// media path itself.
func (h *SignalingHandler) Ready(c *gin.Context) {
	if h.ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.ready.Ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// writeAppError renders err as the two-field {"error","message"} body
// mandated by §6.2's status code discipline, regardless of middleware.
func writeAppError(c *gin.Context, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(pkgerrors.ErrCodeInternal),
			"message": err.Error(),
		})
		return
	}
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
