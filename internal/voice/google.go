package voice

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/antoniostano/sauti/internal/audio"
)

// GoogleConfig configures the Cloud Speech and Cloud Text-to-Speech backends.
// Both authenticate with Application Default Credentials.
type GoogleConfig struct {
	CredentialsFile string
	SpeechLocale    string
	TTSVoice        string
	TTSLanguage     string
	TTSRate         float64
}

func requireGoogleCredentials(cfg GoogleConfig) error {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is not set")
	}
	return nil
}

// GoogleTranscriber uses synchronous Cloud Speech recognition.
type GoogleTranscriber struct {
	client *speech.Client
	locale string
}

func NewGoogleTranscriber(ctx context.Context, cfg GoogleConfig) (*GoogleTranscriber, error) {
	if err := requireGoogleCredentials(cfg); err != nil {
		return nil, err
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	locale := strings.TrimSpace(cfg.SpeechLocale)
	if locale == "" {
		locale = "sw-KE"
	}
	return &GoogleTranscriber{client: client, locale: locale}, nil
}

func (t *GoogleTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               t.locale,
		EnableAutomaticPunctuation: true,
	}
	if strings.EqualFold(req.Language, "en") {
		rc.LanguageCode = "en-US"
	}
	switch req.Format {
	case audio.FormatWAV:
		rc.Encoding = speechpb.RecognitionConfig_LINEAR16
	case audio.FormatOgg:
		rc.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		rc.SampleRateHertz = 48000
	default:
		return Transcription{}, fmt.Errorf("google speech: unsupported container %q", req.Format.Name)
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio}},
	})
	if err != nil {
		return Transcription{}, fmt.Errorf("google speech recognize: %w", err)
	}

	var (
		parts []string
		sum   float64
		n     int
	)
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		sum += float64(alts[0].GetConfidence())
		n++
	}
	confidence := DefaultConfidence
	if n > 0 {
		confidence = sum / float64(n)
	}
	return Transcription{
		Text:       strings.Join(parts, " "),
		Confidence: confidence,
		Raw:        resp,
	}, nil
}

func (t *GoogleTranscriber) Close() error {
	return t.client.Close()
}

// GoogleSynthesizer uses Cloud Text-to-Speech and returns MP3.
type GoogleSynthesizer struct {
	client   *texttospeech.Client
	voice    string
	language string
	rate     float64
}

func NewGoogleSynthesizer(ctx context.Context, cfg GoogleConfig) (*GoogleSynthesizer, error) {
	if err := requireGoogleCredentials(cfg); err != nil {
		return nil, err
	}
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	s := &GoogleSynthesizer{
		client:   client,
		voice:    strings.TrimSpace(cfg.TTSVoice),
		language: strings.TrimSpace(cfg.TTSLanguage),
		rate:     cfg.TTSRate,
	}
	if s.language == "" {
		s.language = "sw-KE"
	}
	if s.rate <= 0 {
		s.rate = 0.95
	}
	return s, nil
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) (Synthesis, error) {
	voice := &texttospeechpb.VoiceSelectionParams{LanguageCode: s.language, Name: s.voice}
	if strings.EqualFold(req.Language, "en") {
		voice = &texttospeechpb.VoiceSelectionParams{LanguageCode: "en-US"}
	}
	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: voice,
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  s.rate,
		},
	})
	if err != nil {
		return Synthesis{}, fmt.Errorf("google text-to-speech: %w", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return Synthesis{}, fmt.Errorf("google text-to-speech returned no audio")
	}
	return Synthesis{Audio: resp.GetAudioContent(), MIME: audio.FormatMP3.MIME}, nil
}

func (s *GoogleSynthesizer) Close() error {
	return s.client.Close()
}
