package domain

// IngestQueue is the bounded channel set sitting between the IPC ingest
// reader (sole producer) and the distribution loop (sole consumer). Publish
// methods never block: a full channel drops the incoming sample and the
// caller is responsible for counting the drop.
type IngestQueue struct {
	Video    chan *VideoSample
	Audio    chan *AudioSample
	Metadata chan *StreamMetadata
}

// Default capacities from the observability/latency budget: roughly 2x the
// target video frame rate, half that for audio, and a handful for metadata
// which arrives at most once per producer connection.
const (
	DefaultVideoQueueCapacity    = 120
	DefaultAudioQueueCapacity   = 60
	DefaultMetadataQueueCapacity = 4
)

func NewIngestQueue(videoCap, audioCap int) *IngestQueue {
	if videoCap <= 0 {
		videoCap = DefaultVideoQueueCapacity
	}
	if audioCap <= 0 {
		audioCap = DefaultAudioQueueCapacity
	}
	return &IngestQueue{
		Video:    make(chan *VideoSample, videoCap),
		Audio:    make(chan *AudioSample, audioCap),
		Metadata: make(chan *StreamMetadata, DefaultMetadataQueueCapacity),
	}
}

// PublishVideo enqueues a video sample, returning false if the queue was
// full and the sample was dropped.
func (q *IngestQueue) PublishVideo(s *VideoSample) bool {
	select {
	case q.Video <- s:
		return true
	default:
		return false
	}
}

// PublishAudio enqueues an audio sample, returning false if the queue was
// full and the sample was dropped.
func (q *IngestQueue) PublishAudio(s *AudioSample) bool {
	select {
	case q.Audio <- s:
		return true
	default:
		return false
	}
}

// PublishMetadata enqueues stream metadata, returning false if the tiny
// metadata queue was full.
func (q *IngestQueue) PublishMetadata(m *StreamMetadata) bool {
	select {
	case q.Metadata <- m:
		return true
	default:
		return false
	}
}
