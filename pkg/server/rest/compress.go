package rest

import (
	"io"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/zstd"
)

var compressedTypes = []string{
	"application/json",
	"text/plain",
}

// NewCompressor returns chi's compressor with zstd registered next to gzip and deflate.
// clients that accept zstd get it first.
func NewCompressor(level int) *middleware.Compressor {
	c := middleware.NewCompressor(level, compressedTypes...)
	c.SetEncoder("zstd", zstdEncoder)
	return c
}

func zstdEncoder(w io.Writer, level int) io.Writer {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil
	}
	return enc
}
