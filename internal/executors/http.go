package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/flowcore/pkg/schema"
)

// HTTPConfig configures the http_request executor.
type HTTPConfig struct {
	MaxResponseBody int64
	Client          *http.Client
}

const defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB

type httpExecutor struct {
	config HTTPConfig
}

func newHTTPExecutor(cfg HTTPConfig) *httpExecutor {
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	return &httpExecutor{config: cfg}
}

func (e *httpExecutor) Execute(ctx context.Context, req *Request) (any, error) {
	rawURL := req.String("url", "")
	if rawURL == "" {
		return nil, req.configErrorf("url is required")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, req.configErrorf("invalid url %q", rawURL)
	}
	method := strings.ToUpper(req.String("method", http.MethodGet))

	timeout := defaultCallTimeout
	if req.Runtime != nil {
		timeout = req.Runtime.DefaultTimeout()
	}
	timeout = req.Duration("timeout", timeout)

	var body io.Reader
	var contentType string
	if raw := req.Value("body"); raw != nil {
		if s, ok := raw.(string); ok {
			body = strings.NewReader(s)
			contentType = "text/plain"
		} else {
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, req.execErrorf("marshal body: %v", err)
			}
			body = bytes.NewReader(b)
			contentType = "application/json"
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return nil, req.configErrorf("build request: %v", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Map("headers") {
		if s, ok := v.(string); ok {
			httpReq.Header.Set(k, s)
		}
	}

	if name := req.String("credential", ""); name != "" {
		if req.Runtime == nil {
			return nil, req.configErrorf("credential %q requested without a runtime", name)
		}
		secret, err := req.Runtime.Credentials(ctx, name)
		if err != nil {
			return nil, nodeError(req, err)
		}
		header := req.String("credential_header", "Authorization")
		if header == "Authorization" {
			secret = "Bearer " + secret
		}
		httpReq.Header.Set(header, secret)
	}

	start := time.Now()
	resp, err := e.config.Client.Do(httpReq)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		code := schema.ErrCodeExecution
		if reqCtx.Err() == context.DeadlineExceeded {
			code = schema.ErrCodeTimeout
		}
		return nil, schema.NewErrorf(code, "http_request: %s %s failed", method, rawURL).
			WithNode(req.NodeID).
			WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxResponseBody))
	if err != nil {
		return nil, req.execErrorf("read response body: %v", err)
	}

	respContentType := resp.Header.Get("Content-Type")
	var parsedBody any
	if len(bodyBytes) > 0 {
		parsedBody = string(bodyBytes)
		if strings.Contains(respContentType, "application/json") {
			var jsonBody any
			if err := json.Unmarshal(bodyBytes, &jsonBody); err == nil {
				parsedBody = jsonBody
			}
		}
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	result := map[string]any{
		"status_code":  resp.StatusCode,
		"status":       resp.Status,
		"headers":      respHeaders,
		"body":         parsedBody,
		"content_type": respContentType,
		"duration_ms":  durationMs,
	}

	if req.Bool("fail_on_error_status", false) && resp.StatusCode >= 400 {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "http_request: server returned %d", resp.StatusCode).
			WithNode(req.NodeID).
			WithDetails(result)
	}
	return result, nil
}
