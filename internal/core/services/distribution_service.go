package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
)

const (
	defaultVideoFrameDuration = time.Second / 30
	drainTimeout              = 500 * time.Millisecond
)

// DistributionService is the sole consumer of the IngestQueue (C6). It
// computes a presentation duration for each sample and hands it to the peer
// manager for fan-out, updating the frame-rate counters as it goes.
type DistributionService struct {
	queue       *domain.IngestQueue
	peerManager ports.PeerManager
	metrics     ports.FrameMetricsRecorder
	logger      *zap.Logger

	videoFrameDuration time.Duration
	audioSampleRate    int
}

func NewDistributionService(queue *domain.IngestQueue, peerManager ports.PeerManager, metrics ports.FrameMetricsRecorder, logger *zap.Logger) *DistributionService {
	return &DistributionService{
		queue:              queue,
		peerManager:        peerManager,
		metrics:            metrics,
		logger:             logger,
		videoFrameDuration: defaultVideoFrameDuration,
	}
}

// Run consumes the queue until ctx is cancelled, then drains for up to
// drainTimeout to avoid a visible stall on shutdown.
func (d *DistributionService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case meta := <-d.queue.Metadata:
			d.handleMetadata(meta)
		case video := <-d.queue.Video:
			d.handleVideo(video)
		case audio := <-d.queue.Audio:
			d.handleAudio(audio)
		}
	}
}

func (d *DistributionService) drain() {
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			return
		case meta := <-d.queue.Metadata:
			d.handleMetadata(meta)
		case video := <-d.queue.Video:
			d.handleVideo(video)
		case audio := <-d.queue.Audio:
			d.handleAudio(audio)
		default:
			return
		}
	}
}

func (d *DistributionService) handleMetadata(meta *domain.StreamMetadata) {
	if meta.VideoFPS > 0 {
		d.videoFrameDuration = time.Second / time.Duration(meta.VideoFPS)
	}
	if meta.AudioSampleRate > 0 {
		d.audioSampleRate = meta.AudioSampleRate
	}
	d.logger.Info("stream_metadata_received",
		zap.Int("video_width", meta.VideoWidth),
		zap.Int("video_height", meta.VideoHeight),
		zap.String("video_codec", string(meta.VideoCodec)),
		zap.Int("video_fps", meta.VideoFPS),
		zap.Int("audio_sample_rate", meta.AudioSampleRate),
		zap.Int("audio_channels", meta.AudioChannels),
	)
}

func (d *DistributionService) handleVideo(sample *domain.VideoSample) {
	// Run's select picks among ready channels at random, so metadata that is
	// already queued is applied first to give this sample its duration.
	select {
	case meta := <-d.queue.Metadata:
		d.handleMetadata(meta)
	default:
	}
	d.metrics.RecordVideoFrame(len(sample.Payload))
	d.peerManager.WriteVideoSample(sample, d.videoFrameDuration.Nanoseconds())
}

func (d *DistributionService) handleAudio(sample *domain.AudioSample) {
	d.metrics.RecordAudioFrame(len(sample.Payload))
	duration := audioSampleDuration(sample, d.audioSampleRate)
	d.peerManager.WriteAudioSample(sample, duration.Nanoseconds())
}

// audioSampleDuration derives a sample's presentation duration from its
// sample count and rate, falling back to the rate cached from the last
// StreamMetadata if the sample itself carries no rate (it always should).
func audioSampleDuration(sample *domain.AudioSample, cachedRate int) time.Duration {
	rate := sample.SampleRate
	if rate <= 0 {
		rate = cachedRate
	}
	if rate <= 0 || sample.SampleCount <= 0 {
		return 0
	}
	return time.Duration(sample.SampleCount) * time.Second / time.Duration(rate)
}
