package compression

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lines = "{\"instance_id\":\"a\"}\n{\"instance_id\":\"b\"}\n"

func TestReaderPlain(t *testing.T) {
	r, err := NewReader(strings.NewReader(lines))
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(got))
}

func TestReaderDetectsZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(lines), nil)
	require.NoError(t, enc.Close())

	r, err := NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(got))
}

func TestReaderShortInput(t *testing.T) {
	for _, in := range []string{"", "{}"} {
		r, err := NewReader(strings.NewReader(in))
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, in, string(got))
	}
}

func TestWriterFlushesCompressedRecords(t *testing.T) {
	var sink bytes.Buffer
	w, err := NewWriter(&sink, true)
	require.NoError(t, err)

	_, err = io.WriteString(w, "{\"instance_id\":\"a\"}\n")
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	// a flushed but unfinished stream already decodes to the first record
	dec, err := zstd.NewReader(bytes.NewReader(sink.Bytes()), zstd.WithDecoderConcurrency(1))
	require.NoError(t, err)
	partial := make([]byte, 20)
	_, err = io.ReadFull(dec, partial)
	require.NoError(t, err)
	assert.Equal(t, "{\"instance_id\":\"a\"}\n", string(partial))
	dec.Close()

	_, err = io.WriteString(w, "{\"instance_id\":\"b\"}\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&sink)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(got))
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl.zst")

	w, err := CreateWriter(path, nil, true)
	require.NoError(t, err)
	_, err = io.WriteString(w, lines)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenReader(path, nil)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, lines, string(got))
}

func TestStdStreams(t *testing.T) {
	var stdout bytes.Buffer
	w, err := CreateWriter("-", &stdout, false)
	require.NoError(t, err)
	_, err = io.WriteString(w, lines)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	require.NoError(t, w.Flush())
	assert.Equal(t, lines, stdout.String())

	r, err := OpenReader("", strings.NewReader(lines))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(got))

	_, err = OpenReader(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
