package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Format describes a recognised audio container.
type Format struct {
	Name string
	MIME string
	Ext  string
}

var (
	FormatWAV = Format{Name: "wav", MIME: "audio/wav", Ext: ".wav"}
	FormatOgg = Format{Name: "ogg", MIME: "audio/ogg", Ext: ".ogg"}
	FormatMP3 = Format{Name: "mp3", MIME: "audio/mpeg", Ext: ".mp3"}
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	ErrCorruptCompressed   = errors.New("corrupt compressed payload")
	ErrTooLarge            = errors.New("payload exceeds size ceiling")
)

// Detect inspects the leading bytes of data for a supported container signature.
func Detect(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return FormatWAV, true
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg, true
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3, true
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Raw MPEG audio frame sync: 11 set bits.
		return FormatMP3, true
	default:
		return Format{}, false
	}
}

// Decompress undoes the request Content-Encoding. Only gzip is supported; an
// empty or identity encoding returns data unchanged. The decoded size is
// bounded by limit when limit > 0.
func Decompress(data []byte, contentEncoding string, limit int64) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch {
	case enc == "" || enc == "identity":
		return data, nil
	case strings.Contains(enc, "gzip"):
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, contentEncoding)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCompressed, err)
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCompressed, err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}
