// Package compressors provides the compression codecs applied to job
// partition files. Subtree streams compress well (long terminator runs and
// low-entropy digit tags), which matters when job outputs travel between
// machines before merging.
package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/primetree/core"
)

// New returns the compressor for a CompressionType.
func New(t core.CompressionType) (core.Compressor, error) {
	switch t {
	case core.CompressionNone:
		return &NoCompressionCompressor{}, nil
	case core.CompressionSnappy:
		return &SnappyCompressor{}, nil
	case core.CompressionLZ4:
		return &LZ4Compressor{}, nil
	case core.CompressionZSTD:
		return NewZstdCompressor()
	}
	return nil, fmt.Errorf("unsupported compression type: %v", t)
}

// NoCompressionCompressor passes data through unchanged.
type NoCompressionCompressor struct{}

var _ core.Compressor = (*NoCompressionCompressor)(nil)

func (c *NoCompressionCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoCompressionCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *NoCompressionCompressor) Type() core.CompressionType {
	return core.CompressionNone
}
