package transport

import (
	"log/slog"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns the client handed to the genai SDK. The overall
// timeout is a backstop; per-request deadlines come from the caller's context.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if logger != nil {
		rt = &loggingTransport{next: rt, logger: logger}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

// loggingTransport logs every outbound call at debug level. Headers are
// never logged since they carry the API key.
type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.Debug("outbound request failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}
	t.logger.Debug("outbound request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}
