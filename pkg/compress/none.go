package compress

import "io"

// noneCodec 原样存储，适合已经压缩过的内容
type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Encode(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

func (noneCodec) Decode(r io.Reader, buf []byte) (int, error) {
	return fill(r, buf)
}
