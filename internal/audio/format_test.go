package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
		ok   bool
	}{
		{"wav", Silence(10*time.Millisecond, 16000), FormatWAV, true},
		{"ogg", []byte("OggS\x00\x02"), FormatOgg, true},
		{"id3", []byte("ID3\x04\x00"), FormatMP3, true},
		{"mpeg frame f3", []byte{0xFF, 0xF3, 0x44}, FormatMP3, true},
		{"mpeg frame fb", []byte{0xFF, 0xFB, 0x90}, FormatMP3, true},
		{"text", []byte("hello"), Format{}, false},
		{"single byte", []byte{0xFF}, Format{}, false},
		{"empty", nil, Format{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Detect(tc.data)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecompressGzip(t *testing.T) {
	wav := Silence(50*time.Millisecond, 16000)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(wav)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := Decompress(buf.Bytes(), "gzip", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, wav, out)

	_, err = Decompress(buf.Bytes(), "gzip", 100)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecompressRejectsCorruptAndUnknown(t *testing.T) {
	_, err := Decompress([]byte("RIFF not gzip"), "gzip", 0)
	assert.ErrorIs(t, err, ErrCorruptCompressed)

	_, err = Decompress([]byte("x"), "br", 0)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	out, err := Decompress([]byte("RIFF"), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), out)
}

func TestSilenceIsWAV(t *testing.T) {
	wav := Silence(100*time.Millisecond, 8000)
	require.Len(t, wav, 44+1600)
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, len(Tone(440, 100*time.Millisecond, 8000)), len(wav))
}
