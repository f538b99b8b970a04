package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/antoniostano/sauti/internal/config"
	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/voice"
)

// Backend names reported in logs, metrics and StageBackends.
const (
	backendOpenAI     = "openai"
	backendGoogle     = "google"
	backendGemini     = "gemini"
	backendElevenLabs = "elevenlabs"
	backendWhisper    = "local_whisper"
	backendLocalLLM   = "local_llm"
	backendPiper      = "piper"
	backendMock       = "mock"
)

type voiceGates struct {
	asr *voice.ASR
	llm *voice.LLM
	tts *voice.TTS

	mu      sync.Mutex
	closers []io.Closer
}

func (g *voiceGates) track(c any) {
	closer, ok := c.(io.Closer)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closers = append(g.closers, closer)
}

func (g *voiceGates) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c.Close())
	}
	g.closers = nil
	return errors.Join(errs...)
}

// resolveVoiceGates lists every backend in fixed priority order. Candidates
// that cannot be built from cfg are skipped by the gate; mocks are only
// offered when VOICE_MOCK is set.
func resolveVoiceGates(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) *voiceGates {
	g := &voiceGates{}

	openaiCfg := voice.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		ASRModel:  cfg.OpenAIASRModel,
		ChatModel: cfg.LLMModel,
	}
	googleCfg := voice.GoogleConfig{
		CredentialsFile: cfg.GoogleCredentials,
		SpeechLocale:    cfg.GoogleSpeechLocale,
		TTSVoice:        cfg.GoogleTTSVoice,
		TTSLanguage:     cfg.GoogleTTSLanguage,
		TTSRate:         cfg.GoogleTTSRate,
	}
	elevenCfg := voice.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
	}

	asrCandidates := []voice.ASRCandidate{
		voice.TranscriberCandidate(backendOpenAI, func() (voice.Transcriber, error) {
			return voice.NewOpenAITranscriber(openaiCfg)
		}),
		voice.TranscriberCandidate(backendGoogle, func() (voice.Transcriber, error) {
			t, err := voice.NewGoogleTranscriber(ctx, googleCfg)
			if err != nil {
				return nil, err
			}
			g.track(t)
			return t, nil
		}),
		voice.TranscriberCandidate(backendElevenLabs, func() (voice.Transcriber, error) {
			return voice.NewElevenLabs(elevenCfg)
		}),
		voice.TranscriberCandidate(backendWhisper, func() (voice.Transcriber, error) {
			return voice.NewLocalWhisper(cfg.LocalWhisperCLI, cfg.LocalWhisperModelPath, cfg.LocalWhisperThreads)
		}),
	}

	llmCandidates := []voice.LLMCandidate{
		voice.GeneratorCandidate(backendOpenAI, func() (voice.Generator, error) {
			return voice.NewOpenAIGenerator(openaiCfg)
		}),
		voice.GeneratorCandidate(backendGemini, func() (voice.Generator, error) {
			return voice.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		}),
		voice.GeneratorCandidate(backendLocalLLM, func() (voice.Generator, error) {
			return voice.NewLocalHTTPGenerator(cfg.LocalLLMURL, cfg.LocalLLMModel)
		}),
	}

	ttsCandidates := []voice.TTSCandidate{
		voice.SynthesizerCandidate(backendGoogle, func() (voice.Synthesizer, error) {
			s, err := voice.NewGoogleSynthesizer(ctx, googleCfg)
			if err != nil {
				return nil, err
			}
			g.track(s)
			return s, nil
		}),
		voice.SynthesizerCandidate(backendElevenLabs, func() (voice.Synthesizer, error) {
			e, err := voice.NewElevenLabs(elevenCfg)
			if err != nil {
				return nil, err
			}
			return e.Synthesizer()
		}),
		voice.SynthesizerCandidate(backendPiper, func() (voice.Synthesizer, error) {
			return voice.NewPiper(cfg.PiperCLI, cfg.PiperModelPath)
		}),
	}

	if cfg.VoiceMock {
		asrCandidates = append(asrCandidates, voice.TranscriberCandidate(backendMock, func() (voice.Transcriber, error) {
			return voice.NewMockTranscriber(), nil
		}))
		llmCandidates = append(llmCandidates, voice.GeneratorCandidate(backendMock, func() (voice.Generator, error) {
			return voice.MockGenerator{}, nil
		}))
		ttsCandidates = append(ttsCandidates, voice.SynthesizerCandidate(backendMock, func() (voice.Synthesizer, error) {
			return voice.MockSynthesizer{}, nil
		}))
	}

	g.asr = voice.NewASR(voice.ASRGateConfig{Timeout: cfg.ASRTimeout, Metrics: metrics, Logger: logger}, asrCandidates...)
	g.llm = voice.NewLLM(voice.LLMGateConfig{Timeout: cfg.LLMTimeout, Metrics: metrics, Logger: logger}, llmCandidates...)
	g.tts = voice.NewTTS(voice.TTSGateConfig{Timeout: cfg.TTSTimeout, Metrics: metrics, Logger: logger}, ttsCandidates...)

	logger.Info().
		Strs("asr", g.asr.Backends()).
		Strs("llm", g.llm.Backends()).
		Strs("tts", g.tts.Backends()).
		Msg("voice backends resolved")
	return g
}
