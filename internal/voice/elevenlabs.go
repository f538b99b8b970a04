package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antoniostano/sauti/internal/audio"
	"github.com/antoniostano/sauti/internal/reliability"
)

const (
	elevenDefaultBaseURL = "https://api.elevenlabs.io"
	elevenSTTModel       = "scribe_v1"
	elevenOutputFormat   = "mp3_44100_128"
	elevenErrorBodyLimit = 4 << 10
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
	Client  *http.Client
}

// ElevenLabs talks to the ElevenLabs REST API for both speech directions.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = elevenDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ElevenLabs{cfg: cfg, client: client}, nil
}

// Synthesizer returns the TTS side, which also needs a voice id.
func (e *ElevenLabs) Synthesizer() (Synthesizer, error) {
	if strings.TrimSpace(e.cfg.VoiceID) == "" {
		return nil, fmt.Errorf("ELEVENLABS_VOICE_ID is not set")
	}
	return elevenSynthesizer{e}, nil
}

type elevenSynthesizer struct{ *ElevenLabs }

type elevenTTSRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	LanguageCode  string              `json:"language_code,omitempty"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

func (s elevenSynthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) (Synthesis, error) {
	body, err := json.Marshal(elevenTTSRequest{
		Text:         req.Text,
		ModelID:      s.cfg.ModelID,
		LanguageCode: languageOrDefault(req.Language),
		VoiceSettings: elevenVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           0.95,
		},
	})
	if err != nil {
		return Synthesis{}, err
	}

	endpoint := s.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "?output_format=" + elevenOutputFormat
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Synthesis{}, err
	}
	httpReq.Header.Set("xi-api-key", s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", audio.FormatMP3.MIME)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Synthesis{}, fmt.Errorf("elevenlabs tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Synthesis{}, statusError("elevenlabs", resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Synthesis{}, fmt.Errorf("read elevenlabs audio: %w", err)
	}
	if len(data) == 0 {
		return Synthesis{}, fmt.Errorf("elevenlabs returned no audio")
	}
	return Synthesis{Audio: data, MIME: audio.FormatMP3.MIME}, nil
}

type elevenSTTResponse struct {
	LanguageCode string `json:"language_code"`
	Text         string `json:"text"`
	Words        []struct {
		Text    string   `json:"text"`
		Type    string   `json:"type"`
		Logprob *float64 `json:"logprob,omitempty"`
	} `json:"words"`
}

// Transcribe uploads the staged audio to the batch speech-to-text endpoint.
func (e *ElevenLabs) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "audio"+req.Format.Ext)
	if err != nil {
		return Transcription{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return Transcription{}, fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model_id", elevenSTTModel); err != nil {
		return Transcription{}, err
	}
	if err := mw.WriteField("language_code", languageOrDefault(req.Language)); err != nil {
		return Transcription{}, err
	}
	if err := mw.Close(); err != nil {
		return Transcription{}, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return Transcription{}, err
	}
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Transcription{}, fmt.Errorf("elevenlabs stt request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Transcription{}, statusError("elevenlabs", resp)
	}

	var out elevenSTTResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcription{}, fmt.Errorf("decode elevenlabs transcript: %w", err)
	}

	confidence := DefaultConfidence
	var sum float64
	var n int
	for _, w := range out.Words {
		if w.Type != "word" || w.Logprob == nil {
			continue
		}
		sum += *w.Logprob
		n++
	}
	if n > 0 {
		// Word logprobs are natural-log token probabilities.
		confidence = math.Exp(sum / float64(n))
	}
	return Transcription{Text: out.Text, Confidence: confidence, Raw: out}, nil
}

func statusError(backend string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, elevenErrorBodyLimit))
	return &reliability.StatusError{
		Backend: backend,
		Status:  resp.StatusCode,
		Body:    strings.TrimSpace(string(body)),
	}
}
