// Package chama reads group savings records from the ChamaFactory contract
// over Ethereum JSON-RPC.
package chama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

var (
	ErrNotConfigured = errors.New("chama client not configured")
	ErrNotFound      = errors.New("chama not found")
)

const defaultConcurrency = 4

type Config struct {
	RPCURL         string
	FactoryAddress string
	// Concurrency bounds the fan-out of ListRecent.
	Concurrency int
	HTTPClient  *http.Client
}

// Client is read-only. A Client built without an RPC URL or factory address
// is valid but never ready.
type Client struct {
	rpcURL      string
	factory     string
	concurrency int
	http        *http.Client
	nextID      atomic.Uint64
	logger      zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	c := &Client{
		rpcURL:      strings.TrimSpace(cfg.RPCURL),
		factory:     strings.ToLower(strings.TrimSpace(cfg.FactoryAddress)),
		concurrency: cfg.Concurrency,
		http:        cfg.HTTPClient,
		logger:      logger.With().Str("component", "chama").Logger(),
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

func (c *Client) Ready() bool {
	return c != nil && c.rpcURL != "" && c.factory != ""
}

// Healthcheck asks the node for its chain id.
func (c *Client) Healthcheck(ctx context.Context) bool {
	if !c.Ready() {
		return false
	}
	var chainID string
	if err := c.call(ctx, "eth_chainId", nil, &chainID); err != nil {
		c.logger.Debug().Err(err).Msg("healthcheck failed")
		return false
	}
	return chainID != ""
}

// Get returns the chama with the given id.
func (c *Client) Get(ctx context.Context, id int64) (Record, error) {
	if !c.Ready() {
		return Record{}, ErrNotConfigured
	}
	data, err := c.ethCall(ctx, encodeCall(selectorGetChamaInfo, big.NewInt(id)))
	if err != nil {
		return Record{}, err
	}
	if len(data) == 0 {
		return Record{}, ErrNotFound
	}
	rec, err := decodeChamaInfo(data)
	if err != nil {
		return Record{}, fmt.Errorf("decode chama %d: %w", id, err)
	}
	if rec.ID == 0 {
		rec.ID = id
	}
	return rec, nil
}

// Count returns the number of chamas created by the factory.
func (c *Client) Count(ctx context.Context) (int64, error) {
	if !c.Ready() {
		return 0, ErrNotConfigured
	}
	data, err := c.ethCall(ctx, encodeCall(selectorChamaCount))
	if err != nil {
		return 0, err
	}
	return intAt(data, 0)
}

// ListRecent fetches the newest limit chamas concurrently. Records that fail
// to load are dropped; the rest are returned newest first.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if !c.Ready() {
		return nil, ErrNotConfigured
	}
	total, err := c.Count(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("chama count failed")
		return []Record{}, nil
	}
	if total <= 0 || limit <= 0 {
		return []Record{}, nil
	}
	start := max(1, total-int64(limit)+1)

	p := pool.NewWithResults[Record]().WithContext(ctx).WithMaxGoroutines(c.concurrency)
	for id := start; id <= total; id++ {
		p.Go(func(ctx context.Context) (Record, error) {
			return c.Get(ctx, id)
		})
	}
	records, err := p.Wait()
	if err != nil {
		c.logger.Warn().Err(err).Int("loaded", len(records)).Int64("requested", total-start+1).Msg("some chamas failed to load")
	}
	slices.SortFunc(records, func(a, b Record) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type callArgs struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

func (c *Client) ethCall(ctx context.Context, data string) ([]byte, error) {
	var out string
	if err := c.call(ctx, "eth_call", []any{callArgs{To: c.factory, Data: data}, "latest"}, &out); err != nil {
		return nil, err
	}
	return decodeHex(out)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &reliability.StatusError{Backend: "chama_rpc", Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
