package persistence

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression for snapshot sections.
type Compression uint8

const (
	// CompressionNone stores sections uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed (hot local snapshots).
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio (snapshots shipped to a blob store).
	CompressionZSTD Compression = 2
)

// Block format: [UncompressedSize u32][CompressedSize u32][payload].
// CompressedSize == 0 marks an uncompressed payload.
const blockHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// CompressBlock compresses data with the given algorithm and prepends the
// block header. Incompressible data is stored as-is (CompressedSize 0).
func CompressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch c {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		var n int
		n, err = lz4.CompressBlock(data, buf, nil)
		if err == nil && n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CompressionNone:
		// stored raw below
	default:
		return nil, errors.New("persistence: unknown compression type")
	}
	if err != nil {
		return nil, err
	}

	stored := compressed
	compressedLen := uint32(len(compressed))
	if compressedLen == 0 || len(compressed) >= len(data) {
		stored = data
		compressedLen = 0
	}

	out := make([]byte, blockHeaderSize+len(stored))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], compressedLen)
	copy(out[blockHeaderSize:], stored)
	return out, nil
}

// DecompressBlock reverses CompressBlock.
func DecompressBlock(block []byte, c Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errors.New("persistence: block too small for header")
	}

	uncompressedSize := binary.LittleEndian.Uint32(block[0:])
	compressedSize := binary.LittleEndian.Uint32(block[4:])

	if compressedSize == 0 {
		payload := block[blockHeaderSize:]
		if uint32(len(payload)) < uncompressedSize {
			return nil, errors.New("persistence: truncated raw block")
		}
		return payload[:uncompressedSize], nil
	}

	if uint32(len(block)) < blockHeaderSize+compressedSize {
		return nil, errors.New("persistence: truncated compressed block")
	}
	payload := block[blockHeaderSize : blockHeaderSize+compressedSize]

	switch c {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("persistence: decompressed size mismatch")
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		return out, err
	default:
		return nil, errors.New("persistence: unknown compression type")
	}
}
