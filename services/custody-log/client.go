// Package custodylog talks to the external append-only event-log service.
// The collaborator keeps an audit trail per custody instance; it is strictly
// write-behind and custody correctness never depends on it responding.
package custodylog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Registration announces a custody instance to the log service.
type Registration struct {
	ChainID           uint64 `json:"chain_id"`
	ContractAddress   string `json:"contract_address"`
	RealtorAddress    string `json:"realtor_address"`
	ContractorAddress string `json:"contractor_address"`
	EscrowAmount      string `json:"escrow_amount_wei"`
}

// Entry is one appended log line for an observed custody event.
type Entry struct {
	EventName    string          `json:"event_name"`
	TxHash       string          `json:"tx_hash,omitempty"`
	ActorAddress string          `json:"actor_address,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// LogLine is one stored line returned by the tail query.
type LogLine struct {
	ID           int64           `json:"id"`
	EventName    string          `json:"event_name"`
	TxHash       string          `json:"tx_hash"`
	ActorAddress string          `json:"actor_address"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    string          `json:"created_at"`
}

// Client is a thin HTTP client for the log collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client, for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("custodylog: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("custodylog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("custodylog: %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("custodylog: %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// RegisterInstance records the instance definition with the log service.
func (c *Client) RegisterInstance(ctx context.Context, reg Registration) error {
	if strings.TrimSpace(reg.ContractAddress) == "" {
		return fmt.Errorf("custodylog: contract address required")
	}
	return c.post(ctx, "/escrows", reg)
}

// AppendEvent appends one log line for the given instance.
func (c *Client) AppendEvent(ctx context.Context, contractAddress string, entry Entry) error {
	addr := strings.TrimSpace(contractAddress)
	if addr == "" {
		return fmt.Errorf("custodylog: contract address required")
	}
	if strings.TrimSpace(entry.EventName) == "" {
		return fmt.Errorf("custodylog: event name required")
	}
	return c.post(ctx, "/escrows/"+url.PathEscape(addr)+"/events", entry)
}

// Tail returns the last n log lines recorded for the instance, newest first.
func (c *Client) Tail(ctx context.Context, contractAddress string, n int) ([]LogLine, error) {
	addr := strings.TrimSpace(contractAddress)
	if addr == "" {
		return nil, fmt.Errorf("custodylog: contract address required")
	}
	if n <= 0 {
		n = 20
	}
	endpoint := c.baseURL + "/escrows/" + url.PathEscape(addr) + "/events?limit=" + strconv.Itoa(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("custodylog: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custodylog: tail: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custodylog: tail: unexpected status %d", resp.StatusCode)
	}
	var decoded struct {
		OK     bool      `json:"ok"`
		Events []LogLine `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("custodylog: decode tail response: %w", err)
	}
	return decoded.Events, nil
}
