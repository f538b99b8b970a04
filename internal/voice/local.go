package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/antoniostano/sauti/internal/audio"
)

// stderrTailBytes bounds how much subprocess stderr is kept for error messages.
const stderrTailBytes = 8 << 10

// LocalWhisper runs the whisper.cpp CLI against the staged audio file.
type LocalWhisper struct {
	cliPath   string
	modelPath string
	threads   int
}

func NewLocalWhisper(cli, modelPath string, threads int) (*LocalWhisper, error) {
	cli = strings.TrimSpace(cli)
	if cli == "" {
		cli = "whisper-cli"
	}
	cliPath, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp CLI not found (%s)", cli)
	}
	modelPath, err = resolveModelPath(modelPath, "LOCAL_WHISPER_MODEL_PATH")
	if err != nil {
		return nil, err
	}
	if threads < 0 {
		return nil, fmt.Errorf("LOCAL_WHISPER_THREADS must be >= 0")
	}
	if threads == 0 {
		threads = min(max(runtime.NumCPU(), 2), 8)
	}
	return &LocalWhisper{cliPath: cliPath, modelPath: modelPath, threads: threads}, nil
}

func (w *LocalWhisper) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	tmpDir, err := os.MkdirTemp("", "sauti-whisper-*")
	if err != nil {
		return Transcription{}, err
	}
	defer os.RemoveAll(tmpDir)
	outPrefix := filepath.Join(tmpDir, "out")

	args := []string{
		"-m", w.modelPath,
		"-f", req.AudioPath,
		"-l", languageOrDefault(req.Language),
		"-otxt",
		"-of", outPrefix,
		"-nt",
		"-t", strconv.Itoa(w.threads),
	}
	if err := runTool(ctx, "whisper.cpp", w.cliPath, args, nil); err != nil {
		return Transcription{}, err
	}

	b, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return Transcription{}, fmt.Errorf("read whisper.cpp output: %w", err)
	}
	// whisper-cli -otxt reports no probabilities.
	return Transcription{Text: strings.TrimSpace(string(b)), Confidence: DefaultConfidence}, nil
}

// Piper synthesizes WAV audio with the piper CLI.
type Piper struct {
	cliPath   string
	modelPath string
}

func NewPiper(cli, modelPath string) (*Piper, error) {
	cli = strings.TrimSpace(cli)
	if cli == "" {
		cli = "piper"
	}
	cliPath, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("piper CLI not found (%s)", cli)
	}
	modelPath, err = resolveModelPath(modelPath, "PIPER_MODEL_PATH")
	if err != nil {
		return nil, err
	}
	return &Piper{cliPath: cliPath, modelPath: modelPath}, nil
}

func (p *Piper) Synthesize(ctx context.Context, req SynthesizeRequest) (Synthesis, error) {
	tmpDir, err := os.MkdirTemp("", "sauti-piper-*")
	if err != nil {
		return Synthesis{}, err
	}
	defer os.RemoveAll(tmpDir)
	outPath := filepath.Join(tmpDir, "speech.wav")

	args := []string{"--model", p.modelPath, "--output_file", outPath}
	if err := runTool(ctx, "piper", p.cliPath, args, strings.NewReader(req.Text)); err != nil {
		return Synthesis{}, err
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return Synthesis{}, fmt.Errorf("read piper output: %w", err)
	}
	if _, ok := audio.Detect(data); !ok {
		return Synthesis{}, fmt.Errorf("piper produced no playable audio")
	}
	return Synthesis{Audio: data, MIME: audio.FormatWAV.MIME}, nil
}

func resolveModelPath(modelPath, envKey string) (string, error) {
	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		return "", fmt.Errorf("%s is required", envKey)
	}
	if !filepath.IsAbs(modelPath) {
		if wd, err := os.Getwd(); err == nil {
			modelPath = filepath.Join(wd, modelPath)
		}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return "", fmt.Errorf("model not found: %s", modelPath)
	}
	return modelPath, nil
}

func runTool(ctx context.Context, label, path string, args []string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = stdin
	cmd.Stdout = io.Discard
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", label, ctxErr)
		}
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with %d: %s", label, exitErr.ExitCode(), detail)
		}
		return fmt.Errorf("%s failed: %s", label, detail)
	}
	return nil
}

type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 16 << 10
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
