package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antoniostano/sauti/internal/reliability"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the hosted transcription and chat backends.
// BaseURL may point at any OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ASRModel  string
	ChatModel string
}

func newOpenAIClient(cfg OpenAIConfig) (*openai.Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

// OpenAITranscriber uses the hosted Whisper transcription API.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.ASRModel)
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{client: client, model: model}, nil
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       t.model,
		FilePath:    req.AudioPath,
		Language:    languageOrDefault(req.Language),
		Temperature: 0,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcription{}, openAIError(err)
	}
	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}
	return Transcription{
		Text:       resp.Text,
		Confidence: ConfidenceFromLogProbs(logprobs),
		Raw:        resp,
	}, nil
}

// OpenAIGenerator uses the chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.ChatModel)
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: client, model: model}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		MaxTokens:   MaxNewTokens,
		Temperature: Temperature,
		TopP:        TopP,
	})
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &reliability.StatusError{Backend: "openai", Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &reliability.StatusError{Backend: "openai", Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}

func languageOrDefault(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "sw"
	}
	return lang
}
