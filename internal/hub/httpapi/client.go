// Package httpapi implements hub.Backend over JSON/HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/hub"
	"github.com/tidwall/gjson"
)

const (
	pipelinesPath = "/api/v1/pipelines"
	healthPath    = "/health"

	// maxResponseBytes bounds a call response; encoded audio rides inline.
	maxResponseBytes = 256 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client talks to the remote pipeline REST API.
type Client struct {
	endpoint  string
	userAgent string
	http      *http.Client
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("http endpoint is empty")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid http endpoint %q", opts.Endpoint)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{endpoint: endpoint, userAgent: opts.UserAgent, http: client}, nil
}

type openRequest struct {
	Model           string `json:"model"`
	Task            string `json:"task,omitempty"`
	Revision        string `json:"model_revision,omitempty"`
	Device          string `json:"device,omitempty"`
	TrustRemoteCode bool   `json:"trust_remote_code"`
}

type openResponse struct {
	PipelineID string `json:"pipeline_id"`
	InputArg   string `json:"input_arg"`
	SampleRate int    `json:"sample_rate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Open creates a remote pipeline for spec.
func (c *Client) Open(ctx context.Context, spec hub.Spec) (hub.Pipeline, error) {
	body, err := json.Marshal(openRequest{
		Model:           spec.Model,
		Task:            spec.Task,
		Revision:        spec.Revision,
		Device:          spec.Device,
		TrustRemoteCode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal open request: %w", err)
	}

	raw, err := c.post(ctx, "open", pipelinesPath, spec.Token, body)
	if err != nil {
		return nil, err
	}

	var resp openResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &hub.Error{Op: "open", Message: "decode open response", Err: err}
	}
	if strings.TrimSpace(resp.PipelineID) == "" {
		return nil, &hub.Error{Op: "open", Message: "open response has no pipeline_id"}
	}

	return &pipeline{
		client:     c,
		id:         resp.PipelineID,
		token:      spec.Token,
		signature:  strings.TrimSpace(resp.InputArg),
		sampleRate: resp.SampleRate,
	}, nil
}

// Health reports whether GET /health answers 2xx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+healthPath, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	c.decorate(req, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError("health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &hub.Error{Code: codeForStatus(resp.StatusCode), Op: "health", Message: resp.Status}
	}
	return nil
}

type pipeline struct {
	client     *Client
	id         string
	token      string
	signature  string
	sampleRate int
}

func (p *pipeline) ID() string        { return p.id }
func (p *pipeline) Signature() string { return p.signature }
func (p *pipeline) SampleRate() int   { return p.sampleRate }

// Call invokes the pipeline with prompt bound to the signature argument name.
func (p *pipeline) Call(ctx context.Context, signature, prompt string) (audio.Result, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, errors.New("call signature is empty")
	}
	body, err := json.Marshal(map[string]string{signature: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal call request: %w", err)
	}

	raw, err := p.client.post(ctx, "call", pipelinesPath+"/"+url.PathEscape(p.id)+"/call", p.token, body)
	if err != nil {
		return nil, err
	}
	return hub.DecodeOutput(raw)
}

func (c *Client) post(ctx context.Context, op, path, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(op, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) decorate(req *http.Request, token string) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// statusError prefers the body's structured code over the HTTP status.
func statusError(op string, status int, raw []byte) error {
	var body errorResponse
	if gjson.ValidBytes(raw) {
		_ = json.Unmarshal(raw, &body)
	}

	code := hub.ParseCode(body.Code)
	if code == hub.CodeUnknown {
		code = codeForStatus(status)
	}
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &hub.Error{Code: code, Op: op, Message: fmt.Sprintf("http %d: %s", status, message)}
}

func codeForStatus(status int) hub.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return hub.CodeUnauthenticated
	case http.StatusNotFound:
		return hub.CodeModelNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return hub.CodeBadArgument
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return hub.CodeTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return hub.CodeUnavailable
	default:
		return hub.CodeUnknown
	}
}

// transportError passes cancellation through and tags everything else as a network failure.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	code := hub.CodeUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = hub.CodeTimeout
	}
	return &hub.Error{Code: code, Op: op, Err: err}
}
