package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// maybeCompress gzips value when it is at least threshold bytes and
// compression shrinks it by 20% or more, matching §4.2's storage policy.
// A threshold of 0 disables compression entirely.
func maybeCompress(value []byte, threshold int) (stored []byte, compressed bool, err error) {
	if threshold <= 0 || len(value) < threshold {
		return value, false, nil
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(value); err != nil {
		return value, false, err
	}
	if err := w.Close(); err != nil {
		return value, false, err
	}

	if float64(buf.Len()) > float64(len(value))*0.8 {
		return value, false, nil
	}
	return buf.Bytes(), true, nil
}

// decompress reverses maybeCompress.
func decompress(value []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
