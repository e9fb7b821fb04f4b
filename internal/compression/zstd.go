// Package compression opens the record streams, transparently handling
// zstd compressed files.
package compression

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Reader reads a record stream, decoding zstd when the stream starts
// with the zstd frame magic.
type Reader struct {
	r       io.Reader
	decoder *zstd.Decoder
	file    *os.File
}

// NewReader wraps r, sniffing its first bytes for zstd.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if !bytes.Equal(head, zstdMagic) {
		return &Reader{r: br}, nil
	}

	decoder, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Reader{r: decoder, decoder: decoder}, nil
}

// OpenReader opens path, or returns a reader over stdin when path is
// empty or "-".
func OpenReader(path string, stdin io.Reader) (*Reader, error) {
	if path == "" || path == "-" {
		return NewReader(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func (r *Reader) Read(p []byte) (int, error) { return r.r.Read(p) }

func (r *Reader) Close() error {
	if r.decoder != nil {
		r.decoder.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Writer writes a record stream. Flush pushes every byte written so far
// to the underlying sink, completing a zstd block when compressing.
type Writer struct {
	buf     *bufio.Writer
	encoder *zstd.Encoder
	file    *os.File
}

// NewWriter wraps w, zstd encoding when compress is set.
func NewWriter(w io.Writer, compress bool) (*Writer, error) {
	out := &Writer{}
	if compress {
		encoder, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, err
		}
		out.encoder = encoder
		w = encoder
	}
	out.buf = bufio.NewWriter(w)
	return out, nil
}

// CreateWriter creates path, or writes to stdout when path is empty or "-".
func CreateWriter(path string, stdout io.Writer, compress bool) (*Writer, error) {
	if path == "" || path == "-" {
		return NewWriter(stdout, compress)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, compress)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

func (w *Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.encoder != nil {
		return w.encoder.Flush()
	}
	return nil
}

// Close flushes and finalizes the stream.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.encoder != nil {
		err = errors.Join(err, w.encoder.Close())
	}
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
	}
	return err
}
