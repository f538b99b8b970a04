package voice

import (
	"context"

	"github.com/antoniostano/sauti/internal/audio"
	"github.com/antoniostano/sauti/internal/intent"
)

// Capability names a model-backed pipeline stage.
type Capability string

const (
	CapabilityASR Capability = "asr"
	CapabilityLLM Capability = "llm"
	CapabilityTTS Capability = "tts"
)

// TranscribeRequest points at a staged audio file. Audio holds the same bytes
// for backends that upload from memory.
type TranscribeRequest struct {
	AudioPath string
	Audio     []byte
	Format    audio.Format
	Language  string
}

// Transcription is the ASR stage result. Raw keeps the backend-native payload
// for diagnostics and is never persisted.
type Transcription struct {
	Text       string
	Confidence float64
	Dialect    intent.Dialect
	Raw        any
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
}

type GenerateRequest struct {
	Text     string
	Context  string
	Dialect  intent.Dialect
	Language string
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type SynthesizeRequest struct {
	Text     string
	Language string
}

// Synthesis is encoded audio plus its MIME type.
type Synthesis struct {
	Audio []byte
	MIME  string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (Synthesis, error)
}
