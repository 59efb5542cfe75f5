package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTP posts requests to a reasoning endpoint and reads the response body as
// newline-delimited JSON frames: {"chunk":"..","target":"..","done":true,"error":".."}.
type HTTP struct {
	url    string
	client *http.Client
	header http.Header
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithHeader adds a header to every request (e.g. Authorization).
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		h.header.Add(key, value)
	}
}

// NewHTTP creates a transport for the endpoint at url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:    url,
		client: &http.Client{Timeout: 2 * time.Minute},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

const maxFrameSize = 1 << 20

func (h *HTTP) Send(ctx context.Context, req Request, sink Sink) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	for k, vs := range h.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reasoning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reasoning endpoint returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return fmt.Errorf("malformed frame: %q", truncate(line, 80))
		}

		f := Frame{
			Chunk:  gjson.GetBytes(line, "chunk").String(),
			Target: gjson.GetBytes(line, "target").String(),
			Done:   gjson.GetBytes(line, "done").Bool(),
			Error:  gjson.GetBytes(line, "error").String(),
		}
		if f.Error != "" {
			f.Done = true
		}
		if err := sink.Emit(f); err != nil {
			return err
		}
		if f.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	// Stream ended without a done frame.
	return sink.Emit(Frame{Done: true})
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
