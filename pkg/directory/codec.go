package directory

import (
	"github.com/klauspost/compress/zstd"
)

// Shared zstd coders. EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/4))
}

func decompress(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}
