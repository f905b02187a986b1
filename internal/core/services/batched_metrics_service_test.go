package services

import (
	"testing"
	"time"
)

func TestBatchedMetricsService_Snapshot(t *testing.T) {
	base := NewMetricsService()
	batched := NewBatchedMetricsService(base, 100, 50*time.Millisecond)
	defer batched.Stop()

	batched.RecordVideoFrame(1200)
	batched.RecordAudioFrame(300)
	batched.RecordAudioDrop()

	stats := batched.Snapshot(1, true)
	if stats.TotalVideoFrames != 1 {
		t.Errorf("TotalVideoFrames = %d, want 1", stats.TotalVideoFrames)
	}
	if stats.TotalAudioFrames != 1 {
		t.Errorf("TotalAudioFrames = %d, want 1", stats.TotalAudioFrames)
	}
	if stats.DroppedAudioFrames != 1 {
		t.Errorf("DroppedAudioFrames = %d, want 1", stats.DroppedAudioFrames)
	}
}
