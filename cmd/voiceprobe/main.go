package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"github.com/antoniostano/sauti/internal/audio"
	"github.com/antoniostano/sauti/internal/protocol"
	"github.com/antoniostano/sauti/internal/reliability"
)

type options struct {
	baseURL  string
	file     string
	turns    int
	language string
	gzip     bool
	ws       bool
	timeout  time.Duration
	verbose  bool
}

type turnOutcome struct {
	Latency    time.Duration
	Session    string
	Intent     string
	Transcript string
	Reply      string
	AudioBytes int
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceprobe: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "voiceprobe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	fs := flag.NewFlagSet("voiceprobe", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "sauti base URL")
	fs.StringVar(&cfg.file, "file", "", "audio file to upload (default: generated 1.5s tone)")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to send")
	fs.StringVar(&cfg.language, "language", "sw", "language hint (sw|en)")
	fs.BoolVar(&cfg.gzip, "gzip", false, "gzip the upload with Content-Encoding: gzip")
	fs.BoolVar(&cfg.ws, "ws", false, "send turns over the streaming websocket instead of /voice/process")
	fs.DurationVar(&cfg.timeout, "timeout", 45*time.Second, "per-turn timeout")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print each turn")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.timeout < time.Second {
		cfg.timeout = time.Second
	}
	cfg.language = strings.ToLower(strings.TrimSpace(cfg.language))
	if cfg.language != "sw" && cfg.language != "en" {
		return options{}, fmt.Errorf("language must be sw or en")
	}
	if cfg.gzip && cfg.ws {
		return options{}, fmt.Errorf("gzip is only supported for HTTP uploads")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg options, out io.Writer) error {
	clip, err := loadClip(cfg.file)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}

	var latencies []time.Duration
	failures := 0
	if cfg.ws {
		latencies, failures, err = runWS(ctx, cfg, clip, out)
	} else {
		latencies, failures, err = runHTTP(ctx, cfg, clip, out)
	}
	if err != nil {
		return err
	}
	printSummary(out, latencies, failures)
	return nil
}

func loadClip(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return audio.Tone(440, 1500*time.Millisecond, 16000), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, ok := audio.Detect(data); !ok {
		return nil, fmt.Errorf("%s is not a wav, ogg or mp3 file", path)
	}
	return data, nil
}

func runHTTP(ctx context.Context, cfg options, clip []byte, out io.Writer) ([]time.Duration, int, error) {
	body := clip
	if cfg.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(clip); err != nil {
			return nil, 0, err
		}
		if err := zw.Close(); err != nil {
			return nil, 0, err
		}
		body = buf.Bytes()
	}

	client := &http.Client{Timeout: cfg.timeout}
	var (
		token     string
		latencies []time.Duration
		failures  int
	)
	for i := 0; i < cfg.turns; i++ {
		res, err := postTurn(ctx, client, cfg, body, token)
		if err != nil {
			failures++
			var se *statusError
			if errors.As(err, &se) && !reliability.IsRetryableHTTPStatus(se.Status) {
				return latencies, failures, fmt.Errorf("turn %d: %w", i+1, err)
			}
			fmt.Fprintf(out, "voiceprobe: turn %d failed: %v\n", i+1, err)
			continue
		}
		token = res.Session
		latencies = append(latencies, res.Latency)
		if cfg.verbose {
			fmt.Fprintf(out, "voiceprobe: turn %d/%d %s intent=%s audio=%dB transcript=%q reply=%q\n",
				i+1, cfg.turns, res.Latency.Round(time.Millisecond), res.Intent, res.AudioBytes, res.Transcript, res.Reply)
		}
	}
	return latencies, failures, nil
}

func postTurn(ctx context.Context, client *http.Client, cfg options, body []byte, token string) (turnOutcome, error) {
	u := cfg.baseURL + "/voice/process?language=" + url.QueryEscape(cfg.language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return turnOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if cfg.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if token != "" {
		req.Header.Set("X-Session-ID", token)
	}

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return turnOutcome{}, err
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(res.Body, 40<<20))
	elapsed := time.Since(start)
	if err != nil {
		return turnOutcome{}, err
	}
	if res.StatusCode != http.StatusOK {
		return turnOutcome{}, &statusError{Status: res.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	transcript, _ := url.QueryUnescape(res.Header.Get("X-Transcript"))
	reply, _ := url.QueryUnescape(res.Header.Get("X-Response-Text"))
	return turnOutcome{
		Latency:    elapsed,
		Session:    res.Header.Get("X-Session-ID"),
		Intent:     res.Header.Get("X-Intent"),
		Transcript: transcript,
		Reply:      reply,
		AudioBytes: len(payload),
	}, nil
}

func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/voice/ws"
	return u.String(), nil
}

func runWS(ctx context.Context, cfg options, clip []byte, out io.Writer) ([]time.Duration, int, error) {
	target, err := wsURL(cfg.baseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(cfg.timeout))
	var ready protocol.SessionReady
	if err := conn.ReadJSON(&ready); err != nil {
		return nil, 0, fmt.Errorf("read session_ready: %w", err)
	}
	if !ready.ASR || !ready.LLM || !ready.TTS {
		return nil, 0, fmt.Errorf("service not ready (asr=%t llm=%t tts=%t)", ready.ASR, ready.LLM, ready.TTS)
	}
	if err := conn.WriteJSON(protocol.ClientHello{Type: protocol.TypeClientHello, Language: cfg.language}); err != nil {
		return nil, 0, err
	}

	var (
		latencies []time.Duration
		failures  int
	)
	for i := 0; i < cfg.turns; i++ {
		start := time.Now()
		_ = conn.SetReadDeadline(start.Add(cfg.timeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, clip); err != nil {
			return latencies, failures, fmt.Errorf("turn %d send: %w", i+1, err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return latencies, failures, fmt.Errorf("turn %d read: %w", i+1, err)
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return latencies, failures, fmt.Errorf("turn %d: %w", i+1, err)
		}
		if env.Type == protocol.TypeError {
			var e protocol.ErrorEvent
			_ = json.Unmarshal(data, &e)
			failures++
			if !e.Retryable {
				return latencies, failures, fmt.Errorf("turn %d: %s: %s", i+1, e.Code, e.Detail)
			}
			fmt.Fprintf(out, "voiceprobe: turn %d failed: %s\n", i+1, e.Detail)
			continue
		}
		var turn protocol.TurnResult
		if err := json.Unmarshal(data, &turn); err != nil {
			return latencies, failures, fmt.Errorf("turn %d: %w", i+1, err)
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return latencies, failures, fmt.Errorf("turn %d audio: %w", i+1, err)
		}
		elapsed := time.Since(start)
		latencies = append(latencies, elapsed)
		if cfg.verbose {
			fmt.Fprintf(out, "voiceprobe: turn %d/%d %s intent=%s audio=%dB reply=%q\n",
				i+1, cfg.turns, elapsed.Round(time.Millisecond), turn.Intent, turn.AudioBytes, turn.ResponseText)
		}
	}

	_ = conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionEnd})
	return latencies, failures, nil
}

// percentile uses nearest-rank on a sorted copy of samples.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	rank = min(max(rank, 0), len(sorted)-1)
	return sorted[rank]
}

func printSummary(out io.Writer, latencies []time.Duration, failures int) {
	fmt.Fprintf(out, "voiceprobe: ok=%d failed=%d p50=%s p95=%s max=%s\n",
		len(latencies),
		failures,
		percentile(latencies, 50).Round(time.Millisecond),
		percentile(latencies, 95).Round(time.Millisecond),
		percentile(latencies, 100).Round(time.Millisecond),
	)
}
