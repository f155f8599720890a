package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taipm/go-agent-runtime/agent"
)

const httpMaxResponseBytes = 64 * 1024

// HTTPTool makes HTTP requests (GET, POST, PUT, DELETE) to APIs and web
// services, with timeout protection and a response-size cap.
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool creates the HTTP request tool.
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

func (t *HTTPTool) Name() string { return "http_request" }

func (t *HTTPTool) Brief() string {
	return "Make HTTP requests (GET, POST, PUT, DELETE) to APIs and web services"
}

func (t *HTTPTool) FullDescription() string {
	return "Make an HTTP request and return the status, headers of interest, and body.\n" +
		"  - method: GET, POST, PUT, DELETE\n" +
		"  - url: full http(s) URL\n" +
		"  - headers: optional JSON object of request headers\n" +
		"  - body: optional request body for POST/PUT\n" +
		"  - timeout_seconds: optional, default 30\n" +
		"Responses longer than 64KB are truncated."
}

func (t *HTTPTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"method":          map[string]interface{}{"type": "string", "description": "HTTP method: GET, POST, PUT, DELETE"},
			"url":             map[string]interface{}{"type": "string", "description": "Full URL to request"},
			"headers":         map[string]interface{}{"type": "object", "description": "Optional request headers"},
			"body":            map[string]interface{}{"type": "string", "description": "Optional request body (for POST, PUT)"},
			"timeout_seconds": map[string]interface{}{"type": "number", "description": "Optional timeout in seconds (default 30)"},
		},
		"required": []string{"method", "url"},
	}
}

func (t *HTTPTool) Execute(call agent.ToolCall) (string, error) {
	var params struct {
		Method         string            `json:"method"`
		URL            string            `json:"url"`
		Headers        map[string]string `json:"headers"`
		Body           string            `json:"body"`
		TimeoutSeconds float64           `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return "", fmt.Errorf("%w: %v", agent.ErrInvalidInput, err)
	}

	method := strings.ToUpper(params.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return "", fmt.Errorf("%w: invalid HTTP method %q", agent.ErrInvalidInput, params.Method)
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return "", fmt.Errorf("%w: URL must start with http:// or https://", agent.ErrInvalidInput)
	}

	timeout := 30 * time.Second
	if params.TimeoutSeconds > 0 {
		timeout = time.Duration(params.TimeoutSeconds * float64(time.Second))
	}

	var bodyReader io.Reader
	if params.Body != "" {
		bodyReader = bytes.NewBufferString(params.Body)
	}

	req, err := http.NewRequest(method, params.URL, bodyReader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", agent.ErrOperationFailed, err)
	}
	req.Header.Set("User-Agent", "agent-runtime/0.1")
	for key, value := range params.Headers {
		req.Header.Set(key, value)
	}

	client := *t.client
	client.Timeout = timeout
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", agent.ErrOperationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", agent.ErrOperationFailed, err)
	}
	truncated := false
	if len(body) > httpMaxResponseBytes {
		body = body[:httpMaxResponseBytes]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", resp.Status)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		fmt.Fprintf(&b, "Content-Type: %s\n", ct)
	}
	b.WriteString("\n")
	b.Write(body)
	if truncated {
		b.WriteString("\n... (response truncated)")
	}
	return b.String(), nil
}
