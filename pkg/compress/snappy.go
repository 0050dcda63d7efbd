package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

// snappyCodec 使用 Snappy framing 格式
// s2 的 Writer 在 SnappyCompat 模式下输出标准 Snappy 流，Reader 同时兼容两种格式
type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Encode(w io.Writer, data []byte) error {
	enc := s2.NewWriter(w, s2.WriterSnappyCompat(), s2.WriterConcurrency(1))
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("snappy encode: %w", err)
	}
	return enc.Close()
}

func (snappyCodec) Decode(r io.Reader, buf []byte) (int, error) {
	return fill(s2.NewReader(r), buf)
}
