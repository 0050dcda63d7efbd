package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

type zlibCodec struct{}

func (zlibCodec) Name() string { return "zlib" }

func (zlibCodec) Encode(w io.Writer, data []byte) error {
	enc, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return fmt.Errorf("zlib encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("zlib encode: %w", err)
	}
	return enc.Close()
}

func (zlibCodec) Decode(r io.Reader, buf []byte) (int, error) {
	dec, err := zlib.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer dec.Close()
	return fill(dec, buf)
}
