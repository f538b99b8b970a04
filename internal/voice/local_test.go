package voice

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestLocalWhisperReadsTextOutput(t *testing.T) {
	dir := t.TempDir()
	cli := writeScript(t, dir, "whisper-cli", `
while [ $# -gt 0 ]; do
  if [ "$1" = "-of" ]; then out="$2"; fi
  shift
done
printf ' Nataka kujiunga na chama \n' > "$out.txt"
`)
	model := filepath.Join(dir, "ggml-small.bin")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	w, err := NewLocalWhisper(cli, model, 2)
	require.NoError(t, err)

	out, err := w.Transcribe(context.Background(), TranscribeRequest{AudioPath: filepath.Join(dir, "in.wav"), Language: "sw"})
	require.NoError(t, err)
	assert.Equal(t, "Nataka kujiunga na chama", out.Text)
	assert.Equal(t, DefaultConfidence, out.Confidence)
}

func TestLocalWhisperSurfacesStderr(t *testing.T) {
	dir := t.TempDir()
	cli := writeScript(t, dir, "whisper-cli", "echo 'failed to load model' >&2\nexit 3\n")
	model := filepath.Join(dir, "ggml-small.bin")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	w, err := NewLocalWhisper(cli, model, 1)
	require.NoError(t, err)

	_, err = w.Transcribe(context.Background(), TranscribeRequest{AudioPath: "in.wav"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with 3")
	assert.Contains(t, err.Error(), "failed to load model")
}

func TestNewLocalWhisperRequiresModel(t *testing.T) {
	dir := t.TempDir()
	cli := writeScript(t, dir, "whisper-cli", "exit 0\n")

	_, err := NewLocalWhisper(cli, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCAL_WHISPER_MODEL_PATH")

	_, err = NewLocalWhisper(cli, filepath.Join(dir, "missing.bin"), 0)
	require.Error(t, err)
}

func TestPiperRejectsNonAudioOutput(t *testing.T) {
	dir := t.TempDir()
	cli := writeScript(t, dir, "piper", `
while [ $# -gt 0 ]; do
  if [ "$1" = "--output_file" ]; then out="$2"; fi
  shift
done
cat > "$out"
`)
	model := filepath.Join(dir, "sw_CD-lanfrica-medium.onnx")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	p, err := NewPiper(cli, model)
	require.NoError(t, err)

	// The fake piper copies stdin to the output file, so text is not audio.
	_, err = p.Synthesize(context.Background(), SynthesizeRequest{Text: "Habari"})
	require.Error(t, err)

	_, err = p.Synthesize(context.Background(), SynthesizeRequest{Text: "RIFF fake"})
	require.NoError(t, err)
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte(strings.Repeat("a", 10)))
	_, _ = b.Write([]byte("bcd"))
	assert.Equal(t, "aaaaabcd", b.String())
}
