package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/sauti/internal/reliability"
)

// LocalHTTPGenerator posts prompts to a local completion server that speaks
// the Ollama /api/generate shape. Plain JSON, NDJSON and SSE replies are accepted.
type LocalHTTPGenerator struct {
	url    string
	model  string
	client *http.Client
}

type localGenerateRequest struct {
	Model   string               `json:"model,omitempty"`
	Prompt  string               `json:"prompt"`
	Stream  bool                 `json:"stream"`
	Options localGenerateOptions `json:"options"`
}

type localGenerateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func NewLocalHTTPGenerator(url, model string) (*LocalHTTPGenerator, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("LOCAL_LLM_URL is not set")
	}
	return &LocalHTTPGenerator{
		url:    url,
		model:  strings.TrimSpace(model),
		client: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

func (g *LocalHTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	payload, err := json.Marshal(localGenerateRequest{
		Model:  g.model,
		Prompt: BuildPrompt(req),
		Stream: false,
		Options: localGenerateOptions{
			NumPredict:  MaxNewTokens,
			Temperature: Temperature,
			TopP:        TopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &reliability.StatusError{Backend: "local_llm", Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		return consumeStreaming(res.Body)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body)), nil
	}
	return strings.TrimSpace(extractText(obj)), nil
}

func consumeStreaming(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}
		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = extractText(obj)
		}
		out.WriteString(delta)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"response", "text", "delta", "output", "message"} {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case map[string]any:
			// Chat-style replies nest the text under message.content.
			if s, ok := t["content"].(string); ok {
				return s
			}
		}
	}
	return ""
}
