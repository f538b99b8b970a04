package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antoniostano/sauti/internal/audio"
	"github.com/antoniostano/sauti/internal/intent"
	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalHTTPGeneratorPlainJSON(t *testing.T) {
	var got localGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama3","response":" Karibu sana. ","done":true}`)
	}))
	defer srv.Close()

	g, err := NewLocalHTTPGenerator(srv.URL, "llama3")
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), GenerateRequest{Text: "Habari", Dialect: intent.Sheng})
	require.NoError(t, err)
	assert.Equal(t, "Karibu sana.", out)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, MaxNewTokens, got.Options.NumPredict)
	assert.Contains(t, got.Prompt, "Swali la mtumiaji: Habari")
	assert.Contains(t, got.Prompt, DialectInstruction(intent.Sheng))
}

func TestLocalHTTPGeneratorStreams(t *testing.T) {
	cases := []struct {
		name string
		ct   string
		body string
	}{
		{name: "ndjson", ct: "application/x-ndjson", body: "{\"response\":\"Hab\"}\n{\"response\":\"ari\"}\n{\"done\":true}\n"},
		{name: "sse", ct: "text/event-stream", body: "data: {\"delta\":\"Hab\"}\n\ndata: {\"delta\":\"ari\"}\n\ndata: [DONE]\n"},
		{name: "chat message", ct: "application/x-ndjson", body: "{\"message\":{\"role\":\"assistant\",\"content\":\"Habari\"}}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.ct)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			g, err := NewLocalHTTPGenerator(srv.URL, "")
			require.NoError(t, err)
			out, err := g.Generate(context.Background(), GenerateRequest{Text: "x"})
			require.NoError(t, err)
			assert.Equal(t, "Habari", out)
		})
	}
}

func TestLocalHTTPGeneratorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewLocalHTTPGenerator(srv.URL, "")
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), GenerateRequest{Text: "x"})

	var statusErr *reliability.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, "upstream_transient", reliability.FailureKind(err))

	_, err = NewLocalHTTPGenerator(" ", "")
	assert.Error(t, err)
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, elevenOutputFormat, r.URL.Query().Get("output_format"))
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		var body elevenTTSRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Karibu", body.Text)
		assert.Equal(t, "sw", body.LanguageCode)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	el, err := NewElevenLabs(ElevenLabsConfig{APIKey: "secret", BaseURL: srv.URL + "/", VoiceID: "voice-1"})
	require.NoError(t, err)
	tts, err := el.Synthesizer()
	require.NoError(t, err)

	out, err := tts.Synthesize(context.Background(), SynthesizeRequest{Text: "Karibu"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), out.Audio)
	assert.Equal(t, audio.FormatMP3.MIME, out.MIME)
}

func TestElevenLabsRequiresVoiceForSynthesis(t *testing.T) {
	el, err := NewElevenLabs(ElevenLabsConfig{APIKey: "secret"})
	require.NoError(t, err)
	_, err = el.Synthesizer()
	assert.Error(t, err)

	_, err = NewElevenLabs(ElevenLabsConfig{})
	assert.Error(t, err)
}

func TestElevenLabsTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech-to-text", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, elevenSTTModel, r.FormValue("model_id"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "audio.wav", hdr.Filename)
		assert.True(t, strings.HasPrefix(string(data), "RIFF"))
		fmt.Fprint(w, `{"language_code":"swa","text":"salio langu","words":[
			{"text":"salio","type":"word","logprob":0},
			{"text":" ","type":"spacing"},
			{"text":"langu","type":"word","logprob":0}]}`)
	}))
	defer srv.Close()

	el, err := NewElevenLabs(ElevenLabsConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := el.Transcribe(context.Background(), TranscribeRequest{Audio: []byte("RIFFdata"), Format: audio.FormatWAV})
	require.NoError(t, err)
	assert.Equal(t, "salio langu", out.Text)
	assert.Equal(t, 1.0, out.Confidence)
}

func TestElevenLabsSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"invalid api key"}`)
	}))
	defer srv.Close()

	el, err := NewElevenLabs(ElevenLabsConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = el.Transcribe(context.Background(), TranscribeRequest{Audio: []byte("RIFF"), Format: audio.FormatWAV})
	var statusErr *reliability.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Contains(t, statusErr.Body, "invalid api key")
}

func TestOpenAIGeneratorSendsPromptParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, SystemPrompt, body.Messages[0].Content)
		assert.Contains(t, body.Messages[1].Content, "Swali la mtumiaji: Nichangie vipi?")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Tuma mchango kupitia M-Pesa. "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", ChatModel: "gpt-4o-mini"})
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), GenerateRequest{Text: "Nichangie vipi?"})
	require.NoError(t, err)
	assert.Equal(t, "Tuma mchango kupitia M-Pesa.", out)
}

func TestOpenAIErrorsCarryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), GenerateRequest{Text: "x"})

	var statusErr *reliability.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)

	_, err = NewOpenAIGenerator(OpenAIConfig{})
	assert.Error(t, err)
}

func TestMockBackendsAreDeterministic(t *testing.T) {
	ctx := context.Background()
	tr, err := NewMockTranscriber().Transcribe(ctx, TranscribeRequest{Audio: []byte("RIFF")})
	require.NoError(t, err)
	assert.Equal(t, intent.CheckBalance, intent.Classify(tr.Text))

	reply, err := MockGenerator{}.Generate(ctx, GenerateRequest{Text: "Habari"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Habari")

	speech, err := MockSynthesizer{}.Synthesize(ctx, SynthesizeRequest{Text: "Habari"})
	require.NoError(t, err)
	f, ok := audio.Detect(speech.Audio)
	require.True(t, ok)
	assert.Equal(t, audio.FormatWAV, f)
}
