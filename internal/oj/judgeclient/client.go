// Package judgeclient calls the compile-and-run endpoint of a compile server.
package judgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/contextkey"
)

const (
	compileAndRunPath = "/compile_and_run"
	// A worker caps stdout and stderr at 4 MiB each; JSON escaping can grow
	// a byte to six.
	defaultMaxResponseBytes = 64 << 20
	maxErrorBodyBytes       = 64 << 10
)

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindStatus     ErrorKind = "status"
	// KindBusy is a worker refusing the call because its slots are full.
	KindBusy ErrorKind = "busy"
	// KindOversize is a 200 body larger than the client accepts.
	KindOversize ErrorKind = "oversize"
)

// TransportError is returned for every call that did not yield a 200 body.
type TransportError struct {
	Kind       ErrorKind
	Addr       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("compile server %s answered status %d", e.Addr, e.StatusCode)
	case KindBusy:
		return fmt.Sprintf("compile server %s is busy", e.Addr)
	}
	return fmt.Sprintf("compile server %s %s error: %v", e.Addr, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client posts CompileRequests over HTTP.
type Client struct {
	http             *http.Client
	maxResponseBytes int64
}

// NewClient wraps httpClient; nil uses a client with no global timeout,
// since each call carries its own.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, maxResponseBytes: defaultMaxResponseBytes}
}

// CompileAndRun posts req to addr and returns the raw 200 body.
func (c *Client) CompileAndRun(ctx context.Context, addr string, timeout time.Duration, req model.CompileRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode compile request: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+compileAndRunPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Kind: KindConnection, Addr: addr, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	if traceID, ok := ctx.Value(contextkey.TraceID).(string); ok && traceID != "" {
		httpReq.Header.Set(commonmw.TraceIDHeader(), traceID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classify(addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		kind := KindStatus
		if resp.StatusCode == http.StatusServiceUnavailable && isQueueFull(errBody) {
			kind = KindBusy
		}
		return nil, &TransportError{Kind: kind, Addr: addr, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, classify(addr, err)
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, &TransportError{
			Kind: KindOversize,
			Addr: addr,
			Err:  fmt.Errorf("response exceeds %d bytes", c.maxResponseBytes),
		}
	}
	return body, nil
}

// SetMaxResponseBytes changes the largest accepted 200 body.
func (c *Client) SetMaxResponseBytes(n int64) {
	if n > 0 {
		c.maxResponseBytes = n
	}
}

// isQueueFull reports whether body is the worker's queue-full envelope.
func isQueueFull(body []byte) bool {
	var env struct {
		Code appErr.ErrorCode `json:"code"`
	}
	return json.Unmarshal(body, &env) == nil && env.Code == appErr.JudgeQueueFull
}

func classify(addr string, err error) *TransportError {
	kind := KindConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &TransportError{Kind: kind, Addr: addr, Err: err}
}
