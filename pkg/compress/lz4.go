package compress

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4 块格式: [tag 1B][原始长度 uvarint][payload]
// 解出的字节数必须正好等于头部记录的长度，截断的数据因此一定报错
const (
	lz4Stored byte = 0
	lz4Block  byte = 1
)

// lz4Codec 使用 LZ4 block 模式，不可压缩的数据原样存储
type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(w io.Writer, data []byte) error {
	dst := make([]byte, 1+binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	hdr := 1 + binary.PutUvarint(dst[1:], uint64(len(data)))

	written, err := lz4.CompressBlock(data, dst[hdr:], nil)
	if err != nil {
		return fmt.Errorf("lz4 encode: %w", err)
	}

	// CompressBlock 返回 0 表示不可压缩
	if written == 0 || written >= len(data) {
		dst[0] = lz4Stored
		written = copy(dst[hdr:], data)
	} else {
		dst[0] = lz4Block
	}

	_, err = w.Write(dst[:hdr+written])
	return err
}

func (lz4Codec) Decode(r io.Reader, buf []byte) (int, error) {
	limit := 1 + binary.MaxVarintLen64 + lz4.CompressBlockBound(len(buf))
	src, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(src) > limit {
		return 0, ErrBlockTooLarge
	}
	if len(src) < 2 {
		return 0, fmt.Errorf("%w: lz4 header truncated", ErrDecode)
	}

	size, k := binary.Uvarint(src[1:])
	if k <= 0 {
		return 0, fmt.Errorf("%w: bad lz4 length header", ErrDecode)
	}
	if size > uint64(len(buf)) {
		return 0, ErrBlockTooLarge
	}
	payload := src[1+k:]
	want := int(size)

	switch src[0] {
	case lz4Stored:
		if len(payload) != want {
			return 0, fmt.Errorf("%w: lz4 stored %d bytes, expected %d", ErrDecode, len(payload), want)
		}
		return copy(buf, payload), nil
	case lz4Block:
		n, err := lz4.UncompressBlock(payload, buf[:want])
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if n != want {
			return n, fmt.Errorf("%w: lz4 got %d bytes, expected %d", ErrDecode, n, want)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unknown lz4 tag %d", ErrDecode, src[0])
	}
}
