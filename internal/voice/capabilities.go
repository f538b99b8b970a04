package voice

import (
	"context"
	"strings"

	"github.com/antoniostano/sauti/internal/intent"
)

type (
	ASRCandidate = Candidate[TranscribeRequest, Transcription]
	LLMCandidate = Candidate[GenerateRequest, string]
	TTSCandidate = Candidate[SynthesizeRequest, Synthesis]

	ASRGateConfig = GateConfig[TranscribeRequest, Transcription]
	LLMGateConfig = GateConfig[GenerateRequest, string]
	TTSGateConfig = GateConfig[SynthesizeRequest, Synthesis]
)

func TranscriberCandidate(name string, build func() (Transcriber, error)) ASRCandidate {
	return ASRCandidate{Name: name, Build: func() (func(context.Context, TranscribeRequest) (Transcription, error), error) {
		t, err := build()
		if err != nil {
			return nil, err
		}
		return t.Transcribe, nil
	}}
}

func GeneratorCandidate(name string, build func() (Generator, error)) LLMCandidate {
	return LLMCandidate{Name: name, Build: func() (func(context.Context, GenerateRequest) (string, error), error) {
		g, err := build()
		if err != nil {
			return nil, err
		}
		return g.Generate, nil
	}}
}

func SynthesizerCandidate(name string, build func() (Synthesizer, error)) TTSCandidate {
	return TTSCandidate{Name: name, Build: func() (func(context.Context, SynthesizeRequest) (Synthesis, error), error) {
		s, err := build()
		if err != nil {
			return nil, err
		}
		return s.Synthesize, nil
	}}
}

// ASR is the transcription capability. It has no canned fallback.
type ASR struct {
	gate *Gate[TranscribeRequest, Transcription]
}

func NewASR(cfg ASRGateConfig, candidates ...ASRCandidate) *ASR {
	cfg.Capability = CapabilityASR
	cfg.Canned = nil
	return &ASR{gate: NewGate(cfg, candidates...)}
}

func (a *ASR) Ready() bool { return a != nil && a.gate.Ready() }

func (a *ASR) Backends() []string {
	if a == nil {
		return nil
	}
	return a.gate.Backends()
}

// Transcribe runs the gate, clamps the confidence and tags the dialect,
// falling back to fallback when no dialect keyword is heard.
func (a *ASR) Transcribe(ctx context.Context, req TranscribeRequest, fallback intent.Dialect) (Transcription, string, error) {
	if !a.Ready() {
		return Transcription{}, "", ErrNotReady
	}
	out, name, err := a.gate.Invoke(ctx, req)
	if err != nil {
		return Transcription{}, name, err
	}
	out.Text = strings.TrimSpace(out.Text)
	out.Confidence = ClampConfidence(out.Confidence)
	out.Dialect = intent.DetectDialect(out.Text, fallback)
	return out, name, nil
}

// LLM is the generation capability with a canned apology fallback.
type LLM struct {
	gate *Gate[GenerateRequest, string]
}

func NewLLM(cfg LLMGateConfig, candidates ...LLMCandidate) *LLM {
	cfg.Capability = CapabilityLLM
	if cfg.Canned == nil {
		cfg.Canned = CannedReply
	}
	return &LLM{gate: NewGate(cfg, candidates...)}
}

func (l *LLM) Ready() bool { return l != nil && l.gate.Ready() }

func (l *LLM) Backends() []string {
	if l == nil {
		return nil
	}
	return l.gate.Backends()
}

// Generate answers req. An empty utterance is answered with the canned
// apology without reaching any backend.
func (l *LLM) Generate(ctx context.Context, req GenerateRequest) (string, string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return CannedReply(req), BackendCanned, nil
	}
	out, name, err := l.gate.Invoke(ctx, req)
	if err != nil {
		return "", name, err
	}
	out = cleanReply(out)
	if out == "" {
		return CannedReply(req), BackendCanned, nil
	}
	return out, name, nil
}

// TTS is the synthesis capability with a canned silent clip fallback.
type TTS struct {
	gate *Gate[SynthesizeRequest, Synthesis]
}

func NewTTS(cfg TTSGateConfig, candidates ...TTSCandidate) *TTS {
	cfg.Capability = CapabilityTTS
	if cfg.Canned == nil {
		cfg.Canned = CannedSpeech
	}
	return &TTS{gate: NewGate(cfg, candidates...)}
}

func (t *TTS) Ready() bool { return t != nil && t.gate.Ready() }

func (t *TTS) Backends() []string {
	if t == nil {
		return nil
	}
	return t.gate.Backends()
}

// Synthesize speaks req.Text after stripping markup that sounds wrong aloud.
func (t *TTS) Synthesize(ctx context.Context, req SynthesizeRequest) (Synthesis, string, error) {
	if spoken := sanitizeSpeechText(req.Text); spoken != "" {
		req.Text = spoken
	}
	if strings.TrimSpace(req.Text) == "" {
		return CannedSpeech(req), BackendCanned, nil
	}
	return t.gate.Invoke(ctx, req)
}
