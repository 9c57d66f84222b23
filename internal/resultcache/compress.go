package resultcache

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// encoder/decoder 는 goroutine-safe 하게 재사용한다.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
	errZstd     error
)

func initZstd() error {
	zstdOnce.Do(func() {
		var err error
		zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			errZstd = fmt.Errorf("create zstd encoder: %w", err)
			return
		}
		zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			errZstd = fmt.Errorf("create zstd decoder: %w", err)
		}
	})
	return errZstd
}

// maxDecodedSize 는 한 결과의 압축 해제 상한이다.
const maxDecodedSize = 4 << 20

func compress(src []byte) ([]byte, error) {
	if err := initZstd(); err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func decompress(src []byte) ([]byte, error) {
	if err := initZstd(); err != nil {
		return nil, err
	}
	decoded, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return decoded, nil
}
