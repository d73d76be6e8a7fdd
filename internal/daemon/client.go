package daemon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

type Client struct {
	socketPath string
	httpClient *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 5 * time.Minute, // preload can be slow
		},
	}
}

// ConnectOrSpawn tries to connect to the daemon, spawning it if necessary.
func ConnectOrSpawn(socketPath string) (*Client, error) {
	client := NewClient(socketPath)

	if client.IsAvailable() {
		return client, nil
	}

	if err := Spawn(); err != nil {
		return nil, fmt.Errorf("spawning daemon: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if client.IsAvailable() {
			return client, nil
		}
	}

	return nil, fmt.Errorf("daemon did not start within 5 seconds")
}

func (c *Client) IsAvailable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Close releases idle connections to the daemon.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) Status(ctx context.Context) (*rpc.StatusResponse, error) {
	var resp rpc.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return &resp, err
}

func (c *Client) Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error) {
	var resp rpc.SearchResponse
	err := c.do(ctx, http.MethodPost, "/search", req, &resp)
	return &resp, err
}

func (c *Client) Show(ctx context.Context, req rpc.ShowRequest) (*rpc.ShowResponse, error) {
	var resp rpc.ShowResponse
	err := c.do(ctx, http.MethodPost, "/show", req, &resp)
	return &resp, err
}

func (c *Client) Tree(ctx context.Context, req rpc.TreeRequest) (*rpc.TreeResponse, error) {
	var resp rpc.TreeResponse
	err := c.do(ctx, http.MethodPost, "/tree", req, &resp)
	return &resp, err
}

// Preload streams preload progress to onProgress and returns the final report.
func (c *Client) Preload(ctx context.Context, req rpc.PreloadRequest, onProgress func(string)) (*kb.PreloadReport, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix/preload", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(body))
	}

	var report *kb.PreloadReport
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var line rpc.ProgressLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decoding progress: %w", err)
		}
		switch line.Type {
		case "progress":
			if onProgress != nil {
				onProgress(line.Message)
			}
		case "result":
			report = line.Result
		}
	}
	if report == nil {
		return nil, fmt.Errorf("preload stream ended without a result")
	}
	return report, nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	var resp map[string]string
	return c.do(ctx, http.MethodPost, "/shutdown", nil, &resp)
}

func (c *Client) CreateSession(ctx context.Context) (*rpc.SessionResponse, error) {
	var resp rpc.SessionResponse
	err := c.do(ctx, http.MethodPost, "/sessions", nil, &resp)
	return &resp, err
}

func (c *Client) Session(ctx context.Context, id string) (*rpc.SessionResponse, error) {
	var resp rpc.SessionResponse
	err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &resp)
	return &resp, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	var resp map[string]string
	return c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, &resp)
}

func (c *Client) SelectChild(ctx context.Context, id string, req rpc.SelectChildRequest) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "select", req)
}

func (c *Client) SelectBreadcrumb(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "breadcrumb", rpc.IndexRequest{Index: index})
}

func (c *Client) SelectFault(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "fault", rpc.IndexRequest{Index: index})
}

func (c *Client) SubmitSearch(ctx context.Context, id, query string) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "search", rpc.QueryRequest{Query: query})
}

func (c *Client) SelectSearchResult(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "result", rpc.IndexRequest{Index: index})
}

func (c *Client) ResetSearch(ctx context.Context, id string) (*rpc.SessionResponse, error) {
	return c.sessionOp(ctx, id, "reset-search", nil)
}

// Detail fetches the session's fault panel as "markdown" or "html".
func (c *Client) Detail(ctx context.Context, id, format string) (string, error) {
	path := sessionPath(id, "detail") + "?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+path, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}

func (c *Client) sessionOp(ctx context.Context, id, op string, body interface{}) (*rpc.SessionResponse, error) {
	var resp rpc.SessionResponse
	err := c.do(ctx, http.MethodPost, sessionPath(id, op), body, &resp)
	return &resp, err
}

func sessionPath(id, op string) string {
	p := "/sessions/" + url.PathEscape(id)
	if op != "" {
		p += "/" + op
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// StatusError is a non-2xx response from the daemon.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(bytes.TrimSpace(body))
}
