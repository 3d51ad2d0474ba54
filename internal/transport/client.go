package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrUnreachable wraps a transport-level failure (connection refused,
// timeout, non-2xx status) so callers can treat "peer unreachable" as
// a distinct, expected outcome during enumeration rather than a fatal
// error.
var ErrUnreachable = errors.New("transport: peer unreachable")

// Pool is a pool of RPC clients keyed by endpoint URL. A single shared
// *http.Client backs every endpoint. The pool does not retry failed
// calls; per-call timeouts come from the context passed to each
// method, never from the client itself.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	http    *http.Client
}

// NewPool returns an empty connection pool.
func NewPool() *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		http:    &http.Client{},
	}
}

// Get returns the Client for endpoint, creating and caching one on
// first use.
func (p *Pool) Get(endpoint string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		return c
	}
	c := &Client{endpoint: endpoint, http: p.http}
	p.clients[endpoint] = c
	return c
}

// Client is a thin JSON-over-HTTP client for one peer's RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a standalone client for endpoint, not backed by a
// Pool. Useful in tests and one-off CLI calls.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint, http: &http.Client{}}
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body *bytes.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("transport: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// Ping calls the ping RPC.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	var resp PingResponse
	if err := c.do(ctx, http.MethodGet, "/rpc/ping", nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Heartbeat calls the heartbeat RPC.
func (c *Client) Heartbeat(ctx context.Context, epoch uint64) (bool, error) {
	var resp HeartbeatResponse
	err := c.do(ctx, http.MethodPost, "/rpc/heartbeat", HeartbeatRequest{Epoch: epoch}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Accepted, nil
}

// RequestVote calls the request_vote RPC.
func (c *Client) RequestVote(ctx context.Context, candidateID, newEpoch uint64) (bool, error) {
	var resp VoteResponse
	err := c.do(ctx, http.MethodPost, "/rpc/request_vote", VoteRequest{CandidateID: candidateID, NewEpoch: newEpoch}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Granted, nil
}

// RegisterFiles calls the register_files RPC.
func (c *Client) RegisterFiles(ctx context.Context, peerID uint64, files []string) (bool, error) {
	var resp RegisterFilesResponse
	err := c.do(ctx, http.MethodPost, "/rpc/register_files", RegisterFilesRequest{PeerID: peerID, Files: files}, &resp)
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// SearchFile calls the search_file RPC.
func (c *Client) SearchFile(ctx context.Context, filename string) ([]uint64, error) {
	var resp SearchFileResponse
	err := c.do(ctx, http.MethodPost, "/rpc/search_file", SearchFileRequest{Filename: filename}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.PeerIDs, nil
}

// GetFileIndex calls the get_file_index RPC.
func (c *Client) GetFileIndex(ctx context.Context) (map[uint64][]string, error) {
	var resp FileIndexResponse
	if err := c.do(ctx, http.MethodGet, "/rpc/get_file_index", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Index, nil
}

// DownloadFile calls the download_file RPC and decodes the
// base64-enveloped body.
func (c *Client) DownloadFile(ctx context.Context, filename string) ([]byte, error) {
	var resp DownloadFileResponse
	err := c.do(ctx, http.MethodPost, "/rpc/download_file", DownloadFileRequest{Filename: filename}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("transport: decode download_file payload: %w", err)
	}
	return data, nil
}

// Endpoint returns the endpoint URL this client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}
