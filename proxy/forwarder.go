// Package proxy forwards chat-completion requests to the upstream API
// and relays responses back to the caller, streaming bodies through
// without buffering.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/x402lab/paygate/config"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/metrics"
	"github.com/x402lab/paygate/types"
)

const (
	// appTitle is sent upstream as the X-Title attribution header.
	appTitle = "paygate"

	// maxErrorBody bounds how much of an upstream error body is read
	// back into memory.
	maxErrorBody = 64 * 1024
)

// Forwarder is a thin streaming HTTP client for the upstream
// chat-completion API. It holds no per-request state and is safe for
// concurrent use.
type Forwarder struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
	rec     metrics.Recorder
}

// New creates a forwarder for the configured upstream. httpClient may
// be nil; the default client carries no global timeout because streamed
// responses are open-ended, cancellation comes from the request context.
func New(cfg *config.Config, httpClient *http.Client, log logger.Logger, rec metrics.Recorder) *Forwarder {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &Forwarder{
		baseURL: strings.TrimRight(cfg.UpstreamURL, "/"),
		apiKey:  cfg.UpstreamKey,
		client:  httpClient,
		log:     log,
		rec:     rec,
	}
}

// ChatCompletions issues exactly one upstream request for the envelope
// and writes the upstream response to w: a live event-stream copy when
// the caller asked for streaming, a re-serialized JSON document
// otherwise. Upstream errors are relayed with their original status and
// never retried.
func (f *Forwarder) ChatCompletions(ctx context.Context, req *types.ChatRequest, w http.ResponseWriter) {
	body, err := req.UpstreamBody()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}
	f.decorate(httpReq)

	started := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.rec.IncCounter("upstream_errors_total", map[string]string{"result": "transport"})
		f.log.Error("upstream request failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Upstream API unreachable",
			"message": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		f.rec.IncCounter("upstream_errors_total", map[string]string{"result": "status"})
		f.log.Warn("upstream returned error", map[string]any{
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(errorText)),
		})
		writeJSON(w, resp.StatusCode, map[string]string{
			"error":   "Upstream API error",
			"details": string(errorText),
		})
		return
	}

	if req.Stream {
		f.relayStream(w, resp.Body)
	} else {
		f.relayJSON(w, resp.Body)
	}
	f.rec.ObserveLatency("upstream", time.Since(started), nil)
}

// relayStream copies the upstream event-stream to the caller as it
// arrives. Headers go out before the first upstream byte; each chunk is
// flushed immediately so chunk boundaries and ordering are preserved.
// When the caller disconnects the copy stops and both bodies are
// released.
func (f *Forwarder) relayStream(w http.ResponseWriter, upstream io.Reader) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, 4096)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Caller went away; stop copying.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				f.log.Debug("upstream stream ended", map[string]any{"error": err.Error()})
			}
			return
		}
	}
}

// relayJSON reads the complete upstream document, checks it parses, and
// re-serializes it as the gateway's own response body.
func (f *Forwarder) relayJSON(w http.ResponseWriter, upstream io.Reader) {
	var doc json.RawMessage
	if err := json.NewDecoder(upstream).Decode(&doc); err != nil {
		f.rec.IncCounter("upstream_errors_total", map[string]string{"result": "decode"})
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Upstream returned malformed response",
			"message": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// Models proxies the upstream model list verbatim.
func (f *Forwarder) Models(ctx context.Context, w http.ResponseWriter) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/models", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch models",
			"message": err.Error(),
		})
		return
	}
	f.decorate(httpReq)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.rec.IncCounter("upstream_errors_total", map[string]string{"result": "transport"})
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch models",
			"message": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		f.rec.IncCounter("upstream_errors_total", map[string]string{"result": "status"})
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch models",
			"message": "upstream models API error: " + strings.TrimSpace(string(errorText)),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, resp.Body)
}

func (f *Forwarder) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", appTitle)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
