// Package ipc implements the Unix-socket producer ingest (C2): exactly one
// producer connection at a time, framed binary messages, non-blocking
// publish into the IngestQueue.
package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
	"webrtc-gateway/pkg/optimize"
)

// MessageType is the single leading byte of a framed IPC message.
type MessageType byte

const (
	MessageTypeVideo    MessageType = 0x01
	MessageTypeAudio    MessageType = 0x02
	MessageTypeMetadata MessageType = 0x03
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeVideo:
		return "video"
	case MessageTypeAudio:
		return "audio"
	case MessageTypeMetadata:
		return "metadata"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(m))
	}
}

const (
	maxMessageSize  = 100 * 1024 * 1024
	readDeadline    = 5 * time.Second
	pooledBufSize   = 256 * 1024
)

// videoHeader is the JSON schema for a video message's metadata region.
type videoHeader struct {
	PTS      int64  `json:"pts"`
	DTS      int64  `json:"dts"`
	Keyframe bool   `json:"keyframe"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Codec    string `json:"codec"`
}

// audioHeader is the JSON schema for an audio message's metadata region.
type audioHeader struct {
	PTS         int64 `json:"pts"`
	SampleRate  int   `json:"sample_rate"`
	Channels    int   `json:"channels"`
	SampleCount int   `json:"sample_count"`
}

// metadataHeader is the JSON schema for a metadata message, snake_case per
// the wire contract.
type metadataHeader struct {
	VideoWidth      int    `json:"video_width"`
	VideoHeight     int    `json:"video_height"`
	VideoCodec      string `json:"video_codec"`
	VideoFPS        int    `json:"video_fps"`
	AudioSampleRate int    `json:"audio_sample_rate"`
	AudioChannels   int    `json:"audio_channels"`
}

// Consumer listens on a Unix domain socket for a producer connection and
// publishes decoded samples into an IngestQueue.
type Consumer struct {
	socketPath string
	queue      *domain.IngestQueue
	drops      ports.DropRecorder
	logger     *zap.Logger
	bufPool    *optimize.BytePool

	mu        sync.RWMutex
	listener  net.Listener
	conn      net.Conn
	connected bool

	// headerBuf is reused across messages on the single active connection's
	// read loop: readMessage/dispatch run sequentially, so the header is
	// fully consumed before the buffer is grown and overwritten again.
	headerBuf []byte

	messagesRead atomic.Uint64
	bytesRead    atomic.Uint64
}

func NewConsumer(socketPath string, queue *domain.IngestQueue, drops ports.DropRecorder, logger *zap.Logger) *Consumer {
	return &Consumer{
		socketPath: socketPath,
		queue:      queue,
		drops:      drops,
		logger:     logger.With(zap.String("component", "ipc_consumer")),
		bufPool:    optimize.NewBytePool(pooledBufSize),
	}
}

// IsConnected reports whether a producer is currently connected.
func (c *Consumer) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Run listens and serves producer connections until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.socketPath, err)
	}

	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if c.listener != nil {
			c.listener.Close()
		}
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	}()

	c.logger.Info("listening for producer connections", zap.String("socket_path", c.socketPath))

	defer os.Remove(c.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		c.logger.Info("producer connected")

		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.conn = conn
		c.connected = true
		c.mu.Unlock()

		c.readLoop(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.connected = false
		}
		c.mu.Unlock()

		c.logger.Info("producer disconnected")
	}
}

func (c *Consumer) readLoop(ctx context.Context, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return
		}

		msgType, header, payload, err := c.readMessage(conn)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Warn("read error, closing producer connection", zap.Error(err))
			}
			return
		}

		c.messagesRead.Add(1)
		c.dispatch(msgType, header, payload)
	}
}

func (c *Consumer) dispatch(msgType MessageType, header, payload []byte) {
	switch msgType {
	case MessageTypeVideo:
		sample, err := decodeVideo(header, payload)
		if err != nil {
			c.logger.Warn("malformed video header", zap.Error(err))
			return
		}
		if !c.queue.PublishVideo(sample) {
			c.drops.RecordVideoDrop()
		}
	case MessageTypeAudio:
		sample, err := decodeAudio(header, payload)
		if err != nil {
			c.logger.Warn("malformed audio header", zap.Error(err))
			return
		}
		if !c.queue.PublishAudio(sample) {
			c.drops.RecordAudioDrop()
		}
	case MessageTypeMetadata:
		meta, err := decodeMetadata(header)
		if err != nil {
			c.logger.Warn("malformed metadata header", zap.Error(err))
			return
		}
		if !c.queue.PublishMetadata(meta) {
			c.logger.Warn("metadata queue full, dropping")
		}
	default:
		c.logger.Warn("unknown message type", zap.Stringer("type", msgType))
	}
}

// readMessage reads one framed message: 1-byte type, 4-byte BE length, then
// the JSON-header+payload region, split via findHeaderEnd.
func (c *Consumer) readMessage(r io.Reader) (MessageType, []byte, []byte, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return 0, nil, nil, err
	}
	msgType := MessageType(typeBuf[0])

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, nil, err
	}
	totalLen := binary.BigEndian.Uint32(lenBuf[:])
	if totalLen > maxMessageSize {
		return 0, nil, nil, fmt.Errorf("message exceeds maximum size: %d bytes", totalLen)
	}

	var data []byte
	var pooled []byte
	if int(totalLen) <= pooledBufSize {
		pooled = c.bufPool.Get()
		data = pooled[:totalLen]
	} else {
		data = optimize.PreAllocateSlice[byte](int(totalLen), int(totalLen))
	}

	if _, err := io.ReadFull(r, data); err != nil {
		if pooled != nil {
			c.bufPool.Put(pooled)
		}
		return 0, nil, nil, fmt.Errorf("truncated message: %w", err)
	}

	headerEnd := findHeaderEnd(data)
	if headerEnd < 0 {
		if pooled != nil {
			c.bufPool.Put(pooled)
		}
		return 0, nil, nil, errors.New("could not find json header boundary")
	}

	c.headerBuf = optimize.GrowSlice(c.headerBuf[:0], headerEnd)
	copy(c.headerBuf, data[:headerEnd])
	header := c.headerBuf

	payloadStart := headerEnd
	if payloadStart < len(data) && data[payloadStart] == 0 {
		payloadStart++
	}
	var payload []byte
	if payloadStart < len(data) {
		payload = make([]byte, len(data)-payloadStart)
		copy(payload, data[payloadStart:])
	}

	if pooled != nil {
		c.bufPool.Put(pooled)
	}

	return msgType, header, payload, nil
}

// findHeaderEnd locates the end of the JSON header within data: first by
// scanning for a 0x00 separator, falling back to balanced-brace scanning
// (respecting string escaping) if none is present.
func findHeaderEnd(data []byte) int {
	for i, b := range data {
		if b == 0 {
			return i
		}
	}

	depth := 0
	inString := false
	escaped := false

	for i, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if b == '\\' && inString {
			escaped = true
			continue
		}
		if b == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if b == '{' {
			depth++
		} else if b == '}' {
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}

	return -1
}

func decodeVideo(header, payload []byte) (*domain.VideoSample, error) {
	var h videoHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, err
	}
	return &domain.VideoSample{
		PTS:        h.PTS,
		DTS:        h.DTS,
		IsKeyframe: h.Keyframe,
		Width:      h.Width,
		Height:     h.Height,
		Codec:      domain.VideoCodec(h.Codec),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}, nil
}

func decodeAudio(header, payload []byte) (*domain.AudioSample, error) {
	var h audioHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, err
	}
	return &domain.AudioSample{
		PTS:         h.PTS,
		SampleRate:  h.SampleRate,
		Channels:    h.Channels,
		SampleCount: h.SampleCount,
		Payload:     payload,
		ReceivedAt:  time.Now(),
	}, nil
}

func decodeMetadata(header []byte) (*domain.StreamMetadata, error) {
	var h metadataHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, err
	}
	return &domain.StreamMetadata{
		VideoWidth:      h.VideoWidth,
		VideoHeight:     h.VideoHeight,
		VideoCodec:      domain.VideoCodec(h.VideoCodec),
		VideoFPS:        h.VideoFPS,
		AudioSampleRate: h.AudioSampleRate,
		AudioChannels:   h.AudioChannels,
		ReceivedAt:      time.Now(),
	}, nil
}
