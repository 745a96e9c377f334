package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	frameHeaderSize = 5 // длина тела (uint32 LE) + флаги

	flagCompressed byte = 1 << 0

	// minCompressSize тела меньше этого не сжимаются
	minCompressSize = 128
	maxFrameBody    = 16 << 20
)

// FrameCodec упаковывает пакет сообщений в кадр: [len:4][flags:1][body].
// Сжатые кадры принимаются всегда, сжатие исходящих включается флагом.
type FrameCodec struct {
	compress     bool
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewFrameCodec создаёт кодек кадров
func NewFrameCodec(compress bool) (*FrameCodec, error) {
	c := &FrameCodec{compress: compress}

	var err error
	if compress {
		c.compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create compressor: %w", err)
		}
	}
	c.decompressor, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	return c, nil
}

// Encode кодирует сообщения в кадр
func (c *FrameCodec) Encode(msgs []*Message) []byte {
	body := MarshalBatch(msgs)

	var flags byte
	if c.compressor != nil && len(body) >= minCompressSize {
		if packed := c.compressor.EncodeAll(body, nil); len(packed) < len(body) {
			body = packed
			flags |= flagCompressed
		}
	}

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	frame[4] = flags
	return append(frame, body...)
}

// Decode разбирает кадр в сообщения
func (c *FrameCodec) Decode(frame []byte) ([]*Message, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrTruncated, len(frame))
	}
	length := binary.LittleEndian.Uint32(frame[:4])
	if length > maxFrameBody {
		return nil, fmt.Errorf("frame body too large: %d", length)
	}
	body := frame[frameHeaderSize:]
	if uint32(len(body)) != length {
		return nil, fmt.Errorf("%w: frame length mismatch (%d != %d)", ErrTruncated, len(body), length)
	}

	if frame[4]&flagCompressed != 0 {
		decompressed, err := c.decompressor.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
		body = decompressed
	}
	return UnmarshalBatch(body)
}

// Close освобождает ресурсы zstd
func (c *FrameCodec) Close() error {
	c.decompressor.Close()
	if c.compressor != nil {
		return c.compressor.Close()
	}
	return nil
}
