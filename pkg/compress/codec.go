package compress

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	// ErrDecode 表示压缩数据无法解码 (损坏或算法不匹配)
	ErrDecode = errors.New("failed to decode block")
	// ErrBlockTooLarge 表示解压后的数据超过了调用者提供的缓冲区
	ErrBlockTooLarge = errors.New("decoded block exceeds buffer size")
)

// Codec 是可插拔的块压缩算法
// 调用方只依赖这两个函数，切换算法不影响 Block Manager
type Codec interface {
	Name() string

	// Encode 将 data 的压缩形式写入 w
	Encode(w io.Writer, data []byte) error

	// Decode 从 r 解压到 buf，返回写入的字节数
	// 最后一块通常不满，n < len(buf) 不是错误
	Decode(r io.Reader, buf []byte) (int, error)
}

// 默认算法与原有数据兼容 (Snappy framing)
const Default = "snappy"

var registry = map[string]Codec{
	"snappy": snappyCodec{},
	"zstd":   zstdCodec{},
	"zlib":   zlibCodec{},
	"lz4":    lz4Codec{},
	"none":   noneCodec{},
}

// Lookup 根据名称返回 Codec
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = Default
	}
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported codec: %q (available: %v)", name, Names())
	}
	return c, nil
}

// Names 返回所有已注册的算法名称 (排序后)
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// fill 把解压流读满 buf，并确认流里没有多余数据
// 只有解码器返回的裸 io.EOF 才算块结束；io.ErrUnexpectedEOF 等说明数据被截断
func fill(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	// buf 已满，流必须正好结束
	var extra [1]byte
	for {
		m, err := r.Read(extra[:])
		if m > 0 {
			return n, ErrBlockTooLarge
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
}
