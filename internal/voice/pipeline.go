package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/antoniostano/sauti/internal/audio"
	"github.com/antoniostano/sauti/internal/chama"
	"github.com/antoniostano/sauti/internal/intent"
	"github.com/antoniostano/sauti/internal/memory"
	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/policy"
	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/antoniostano/sauti/internal/session"
	"github.com/rs/zerolog"
)

// Client-facing details for rejected requests.
const (
	DetailASRNotReady      = "ASR service is not ready."
	DetailLLMNotReady      = "LLM service is not ready."
	DetailTTSNotReady      = "TTS service is not ready."
	DetailInvalidGzip      = "Invalid gzip audio payload"
	DetailUnsupportedEnc   = "Unsupported content encoding"
	DetailEmptyAudio       = "Empty audio payload"
	DetailInvalidFormat    = "Invalid audio format"
	DetailTooLarge         = "Audio payload too large"
	DetailInvalidSession   = "Invalid session identifier"
	DetailUnsupportedLang  = "Unsupported language"
	DetailTranscribeFailed = "Speech recognition failed."
	DetailGenerateFailed   = "Response generation failed."
	DetailSynthesizeFailed = "Speech synthesis failed."
	DetailCanceled         = "Request canceled"
)

const (
	defaultMaxAudioBytes = 5 * 1024 * 1024
	defaultDomainTimeout = 5 * time.Second
	defaultLanguage      = "sw"
)

var supportedLanguages = map[string]bool{"sw": true, "en": true}

// ChamaLookup is the read-only domain collaborator consulted for balance questions.
type ChamaLookup interface {
	Ready() bool
	Get(ctx context.Context, id int64) (chama.Record, error)
}

type PipelineConfig struct {
	MaxAudioBytes int64
	// TempDir holds staged uploads. Empty means os.TempDir().
	TempDir       string
	ContextLimit  int
	DomainTimeout time.Duration
	// StrictVerify mints a fresh session when a token fails authentication
	// under a configured key, instead of trusting it as a raw id.
	StrictVerify   bool
	DefaultChamaID int64
}

type PipelineDeps struct {
	ASR     *ASR
	LLM     *LLM
	TTS     *TTS
	Memory  *memory.Memory
	Codec   *session.Codec
	Chama   ChamaLookup
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Pipeline runs one voice turn: transcribe, recall, classify, answer, remember, speak.
type Pipeline struct {
	cfg     PipelineConfig
	asr     *ASR
	llm     *LLM
	tts     *TTS
	memory  *memory.Memory
	codec   *session.Codec
	chama   ChamaLookup
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudioBytes
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = memory.DefaultContextLimit
	}
	if cfg.DomainTimeout <= 0 {
		cfg.DomainTimeout = defaultDomainTimeout
	}
	if cfg.DefaultChamaID <= 0 {
		cfg.DefaultChamaID = 1
	}
	if deps.Codec == nil {
		deps.Codec, _ = session.NewCodec("")
	}
	if deps.Memory == nil {
		deps.Memory = memory.NewMemory(nil, 0, deps.Logger)
	}
	return &Pipeline{
		cfg:     cfg,
		asr:     deps.ASR,
		llm:     deps.LLM,
		tts:     deps.TTS,
		memory:  deps.Memory,
		codec:   deps.Codec,
		chama:   deps.Chama,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Request is one uploaded utterance.
type Request struct {
	Audio           []byte
	ContentEncoding string
	SessionToken    string
	Language        string
}

// Result carries the spoken answer and the metadata returned alongside it.
type Result struct {
	Audio        []byte
	MIME         string
	SessionID    string
	SessionToken string
	Intent       intent.Label
	Dialect      intent.Dialect
	Confidence   float64
	ResponseText string
	Transcript   string
	Backends     StageBackends
}

// StageBackends names the backend that served each capability.
type StageBackends struct {
	ASR string `json:"asr"`
	LLM string `json:"llm"`
	TTS string `json:"tts"`
}

// Readiness reports whether each capability resolved a backend.
type Readiness struct {
	ASR bool `json:"asr"`
	LLM bool `json:"llm"`
	TTS bool `json:"tts"`
}

func (p *Pipeline) Readiness() Readiness {
	return Readiness{ASR: p.asr.Ready(), LLM: p.llm.Ready(), TTS: p.tts.Ready()}
}

func (r Readiness) All() bool { return r.ASR && r.LLM && r.TTS }

// CheckReady fails with a NotReady error naming the first capability that
// has no backend.
func (p *Pipeline) CheckReady() error {
	switch {
	case !p.asr.Ready():
		return reliability.New(reliability.NotReady, DetailASRNotReady)
	case !p.llm.Ready():
		return reliability.New(reliability.NotReady, DetailLLMNotReady)
	case !p.tts.Ready():
		return reliability.New(reliability.NotReady, DetailTTSNotReady)
	}
	return nil
}

// Process runs the full turn for req. Returned errors are *reliability.Error.
func (p *Pipeline) Process(ctx context.Context, req Request) (res Result, err error) {
	if err := p.CheckReady(); err != nil {
		p.metrics.ObserveOutcome(observability.OutcomeNotReady)
		return Result{}, err
	}

	release := p.metrics.TrackInFlight()
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = reliability.Wrap(reliability.Unexpected, "Internal server error", fmt.Errorf("pipeline panic: %v", r))
			p.logger.Error().Err(err).Bytes("stack", debug.Stack()).Msg("voice pipeline panic")
		}
		release()
		p.observeOutcome(err)
		if err == nil {
			p.metrics.ObserveStage(observability.StageTotal, time.Since(started))
		}
	}()

	payload, format, language, err := p.intake(req)
	if err != nil {
		return Result{}, err
	}
	sessionID, err := p.resolveSession(req.SessionToken)
	if err != nil {
		return Result{}, err
	}
	log := p.logger.With().Str("session_id", sessionID).Logger()

	path, err := p.stageAudio(payload, format)
	if err != nil {
		return Result{}, reliability.Wrap(reliability.Unexpected, "Internal server error", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn().Err(rmErr).Str("path", path).Msg("remove staged audio")
		}
	}()

	stageStart := time.Now()
	tr, asrBackend, err := p.asr.Transcribe(ctx, TranscribeRequest{
		AudioPath: path,
		Audio:     payload,
		Format:    format,
		Language:  language,
	}, intent.FallbackForLanguage(language))
	p.metrics.ObserveStage(observability.StageASR, time.Since(stageStart))
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return Result{}, reliability.Wrap(reliability.NotReady, DetailASRNotReady, err)
		}
		return Result{}, stageError(err, DetailTranscribeFailed)
	}
	p.metrics.ObserveTranscription(tr.Confidence)
	log.Info().
		Str("stage", observability.StageASR).
		Str("backend", asrBackend).
		Float64("confidence", tr.Confidence).
		Str("transcript", policy.ForLog(tr.Text)).
		Msg("transcribed")

	stageStart = time.Now()
	history := p.memory.RecentContext(ctx, sessionID, p.cfg.ContextLimit)
	p.metrics.ObserveStage(observability.StageContext, time.Since(stageStart))

	label := intent.Classify(tr.Text)
	p.metrics.ObserveIntent(intent.DefaultConfidence)

	var record *chama.Record
	if intent.RequiresDomainData(label) {
		stageStart = time.Now()
		record = p.lookupDomain(ctx, log)
		p.metrics.ObserveStage(observability.StageDomain, time.Since(stageStart))
	}

	var reply, llmBackend string
	if record != nil {
		reply = BalanceReply(*record)
		llmBackend = "template"
	} else {
		stageStart = time.Now()
		reply, llmBackend, err = p.llm.Generate(ctx, GenerateRequest{
			Text:     tr.Text,
			Context:  history,
			Dialect:  tr.Dialect,
			Language: language,
		})
		p.metrics.ObserveStage(observability.StageLLM, time.Since(stageStart))
		if err != nil {
			return Result{}, stageError(err, DetailGenerateFailed)
		}
	}

	p.memory.AppendTurn(ctx, sessionID, tr.Text, reply, string(tr.Dialect))
	p.memory.AppendIntent(ctx, sessionID, string(label), intent.DefaultConfidence)

	stageStart = time.Now()
	speech, ttsBackend, err := p.tts.Synthesize(ctx, SynthesizeRequest{Text: reply, Language: language})
	p.metrics.ObserveStage(observability.StageTTS, time.Since(stageStart))
	if err != nil {
		return Result{}, stageError(err, DetailSynthesizeFailed)
	}

	log.Info().
		Str("intent", string(label)).
		Str("dialect", string(tr.Dialect)).
		Str("llm_backend", llmBackend).
		Str("tts_backend", ttsBackend).
		Str("response", policy.ForLog(reply)).
		Int64("duration_ms", time.Since(started).Milliseconds()).
		Msg("voice turn complete")

	return Result{
		Audio:        speech.Audio,
		MIME:         speech.MIME,
		SessionID:    sessionID,
		SessionToken: p.codec.Encode(sessionID),
		Intent:       label,
		Dialect:      tr.Dialect,
		Confidence:   tr.Confidence,
		ResponseText: reply,
		Transcript:   tr.Text,
		Backends:     StageBackends{ASR: asrBackend, LLM: llmBackend, TTS: ttsBackend},
	}, nil
}

// intake undoes compression and validates the payload and language hint.
func (p *Pipeline) intake(req Request) ([]byte, audio.Format, string, error) {
	payload, err := audio.Decompress(req.Audio, req.ContentEncoding, p.cfg.MaxAudioBytes)
	switch {
	case errors.Is(err, audio.ErrTooLarge):
		return nil, audio.Format{}, "", reliability.Wrap(reliability.InvalidInput, DetailTooLarge, err)
	case errors.Is(err, audio.ErrUnsupportedEncoding):
		return nil, audio.Format{}, "", &reliability.Error{Category: reliability.InvalidInput, Detail: DetailUnsupportedEnc, Status: http.StatusBadRequest, Err: err}
	case err != nil:
		return nil, audio.Format{}, "", &reliability.Error{Category: reliability.InvalidInput, Detail: DetailInvalidGzip, Status: http.StatusBadRequest, Err: err}
	}

	if len(payload) == 0 {
		return nil, audio.Format{}, "", reliability.New(reliability.InvalidInput, DetailEmptyAudio)
	}
	if int64(len(payload)) > p.cfg.MaxAudioBytes {
		return nil, audio.Format{}, "", reliability.New(reliability.InvalidInput, DetailTooLarge)
	}
	format, ok := audio.Detect(payload)
	if !ok {
		return nil, audio.Format{}, "", reliability.New(reliability.InvalidInput, DetailInvalidFormat)
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = defaultLanguage
	}
	if !supportedLanguages[language] {
		return nil, audio.Format{}, "", reliability.New(reliability.InvalidInput, DetailUnsupportedLang)
	}
	return payload, format, language, nil
}

// resolveSession turns a caller token into a session id. An empty token
// starts a new session.
func (p *Pipeline) resolveSession(token string) (string, error) {
	id, fresh, err := p.openSession(token)
	if err != nil {
		return "", err
	}
	if fresh {
		return session.NewID(), nil
	}
	return id, nil
}

// openSession reports fresh=true when token carries no trusted session.
func (p *Pipeline) openSession(token string) (id string, fresh bool, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", true, nil
	}
	plain, verified := p.codec.Open(token)
	if !verified && p.codec.Enabled() && p.cfg.StrictVerify {
		p.logger.Debug().Msg("session token failed verification, starting a new session")
		return "", true, nil
	}
	id, ok := session.NormalizeID(plain)
	if !ok {
		return "", false, reliability.New(reliability.InvalidInput, DetailInvalidSession)
	}
	return id, false, nil
}

// SessionIntents returns the intents recorded for the session behind token,
// oldest first. An untrusted token yields no history.
func (p *Pipeline) SessionIntents(ctx context.Context, token string) ([]memory.IntentRecord, error) {
	if strings.TrimSpace(token) == "" {
		return nil, reliability.New(reliability.InvalidInput, DetailInvalidSession)
	}
	id, fresh, err := p.openSession(token)
	if err != nil {
		return nil, err
	}
	if fresh {
		return []memory.IntentRecord{}, nil
	}
	intents := p.memory.Intents(ctx, id)
	if intents == nil {
		intents = []memory.IntentRecord{}
	}
	return intents, nil
}

func (p *Pipeline) stageAudio(payload []byte, format audio.Format) (string, error) {
	f, err := os.CreateTemp(p.cfg.TempDir, "sauti-*"+format.Ext)
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp audio: %w", err)
	}
	return path, nil
}

// lookupDomain fetches the default chama. Every failure reads as "no data".
func (p *Pipeline) lookupDomain(ctx context.Context, log zerolog.Logger) (rec *chama.Record) {
	if p.chama == nil || !p.chama.Ready() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("chama lookup panic")
			rec = nil
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DomainTimeout)
	defer cancel()
	got, err := p.chama.Get(ctx, p.cfg.DefaultChamaID)
	if err != nil {
		log.Warn().Err(err).Int64("chama_id", p.cfg.DefaultChamaID).Msg("chama lookup failed")
		return nil
	}
	return &got
}

func (p *Pipeline) observeOutcome(err error) {
	if err == nil {
		p.metrics.ObserveOutcome(observability.OutcomeSuccess)
		return
	}
	switch reliability.CategoryOf(err) {
	case reliability.InvalidInput:
		p.metrics.ObserveOutcome(observability.OutcomeInvalid)
		p.logger.Debug().Err(err).Msg("voice request rejected")
	case reliability.NotReady:
		p.metrics.ObserveOutcome(observability.OutcomeNotReady)
	case reliability.Canceled:
		p.metrics.ObserveOutcome(observability.OutcomeCanceled)
		p.logger.Debug().Err(err).Msg("voice request canceled by client")
	default:
		p.metrics.ObserveOutcome(observability.OutcomeError)
		p.logger.Error().Err(err).Msg("voice pipeline error")
	}
}

// stageError classifies a failed backend stage. A caller that went away is
// not a backend failure.
func stageError(err error, detail string) error {
	if errors.Is(err, context.Canceled) {
		return reliability.Wrap(reliability.Canceled, DetailCanceled, err)
	}
	return reliability.Wrap(reliability.BackendFailure, detail, err)
}

// ContextHealthy reports whether the context store answers a ping.
func (p *Pipeline) ContextHealthy(ctx context.Context) bool {
	return p.memory.Healthy(ctx)
}

// BalanceReply answers a balance question straight from the chama record.
func BalanceReply(r chama.Record) string {
	return fmt.Sprintf("Kwa sasa chama %s kina wanachama %d na michango ya %s ETH. Je, ungependa kuchangia sasa?",
		r.Name, r.MemberCount, r.ContributionETH())
}
