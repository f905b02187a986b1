package services

import (
	"context"
	"time"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/pkg/batch"
)

// BatchedMetricsService wraps MetricsService so that the high-frequency
// per-frame counter updates from the distribution loop (C6) don't each take
// the underlying service's lock; they are queued and applied in batches.
type BatchedMetricsService struct {
	baseService *MetricsService
	batcher     *batch.Batcher
}

type frameOperation struct {
	kind        string // "video", "audio", "video_drop", "audio_drop"
	byteSize    int
	baseService *MetricsService
}

func (op *frameOperation) Execute(ctx context.Context) error {
	switch op.kind {
	case "video":
		op.baseService.RecordVideoFrame(op.byteSize)
	case "audio":
		op.baseService.RecordAudioFrame(op.byteSize)
	case "video_drop":
		op.baseService.RecordVideoDrop()
	case "audio_drop":
		op.baseService.RecordAudioDrop()
	}
	return nil
}

type frameBatchProcessor struct{}

func (p *frameBatchProcessor) ProcessBatch(ctx context.Context, operations []batch.Operation) error {
	for _, op := range operations {
		_ = op.Execute(ctx)
	}
	return nil
}

// NewBatchedMetricsService creates a batched wrapper around baseService.
func NewBatchedMetricsService(baseService *MetricsService, batchSize int, batchInterval time.Duration) *BatchedMetricsService {
	batcher := batch.NewBatcher(batchSize, batchInterval, &frameBatchProcessor{})
	return &BatchedMetricsService{baseService: baseService, batcher: batcher}
}

func (b *BatchedMetricsService) RecordVideoFrame(byteSize int) {
	_ = b.batcher.Add(&frameOperation{kind: "video", byteSize: byteSize, baseService: b.baseService})
}

func (b *BatchedMetricsService) RecordAudioFrame(byteSize int) {
	_ = b.batcher.Add(&frameOperation{kind: "audio", byteSize: byteSize, baseService: b.baseService})
}

func (b *BatchedMetricsService) RecordVideoDrop() {
	_ = b.batcher.Add(&frameOperation{kind: "video_drop", baseService: b.baseService})
}

func (b *BatchedMetricsService) RecordAudioDrop() {
	_ = b.batcher.Add(&frameOperation{kind: "audio_drop", baseService: b.baseService})
}

// Snapshot is not batched: it flushes pending operations first so the
// reading reflects everything recorded so far.
func (b *BatchedMetricsService) Snapshot(peerCount int, producerConnected bool) domain.GatewayStats {
	_ = b.batcher.Flush(context.Background())
	return b.baseService.Snapshot(peerCount, producerConnected)
}

// Stop stops the batcher, flushing any remaining operations.
func (b *BatchedMetricsService) Stop() {
	b.batcher.Stop()
}
