// Package grpcapi implements hub.Backend over gRPC unary calls carrying
// google.protobuf.Struct payloads.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/hub"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified remote pipeline service.
const ServiceName = "musegen.hub.v1.Pipelines"

const (
	openMethod = "/" + ServiceName + "/Open"
	callMethod = "/" + ServiceName + "/Call"

	// maxResponseBytes bounds a call response; encoded audio rides inline.
	maxResponseBytes = 256 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint    string
	DialTimeout time.Duration
	UserAgent   string
}

// Client is a lazily connected gRPC pipeline backend.
type Client struct {
	conn        *grpc.ClientConn
	dialTimeout time.Duration
}

// New creates the client connection without blocking on the network.
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	if endpoint == "" {
		return nil, errors.New("grpc endpoint is empty")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxResponseBytes)),
	}
	if opts.UserAgent != "" {
		dialOpts = append(dialOpts, grpc.WithUserAgent(opts.UserAgent))
	}
	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial pipeline grpc %q: %w", endpoint, err)
	}
	return &Client{conn: conn, dialTimeout: opts.DialTimeout}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Open creates a remote pipeline for spec.
func (c *Client) Open(ctx context.Context, spec hub.Spec) (hub.Pipeline, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	fields := map[string]any{
		hub.FieldModel:           spec.Model,
		hub.FieldTrustRemoteCode: true,
	}
	if spec.Task != "" {
		fields[hub.FieldTask] = spec.Task
	}
	if spec.Revision != "" {
		fields[hub.FieldRevision] = spec.Revision
	}
	if spec.Device != "" {
		fields[hub.FieldDevice] = spec.Device
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build open request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(withToken(ctx, spec.Token), openMethod, req, resp); err != nil {
		return nil, fromStatus(ctx, "open", err)
	}

	id := strings.TrimSpace(resp.GetFields()[hub.FieldPipelineID].GetStringValue())
	if id == "" {
		return nil, &hub.Error{Op: "open", Message: "open response has no pipeline_id"}
	}
	return &pipeline{
		client:     c,
		id:         id,
		token:      spec.Token,
		signature:  strings.TrimSpace(resp.GetFields()[hub.FieldInputArg].GetStringValue()),
		sampleRate: int(resp.GetFields()[hub.FieldSampleRate].GetNumberValue()),
	}, nil
}

// Health runs grpc.health.v1 Check for the pipeline service.
func (c *Client) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fromStatus(ctx, "health", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &hub.Error{Code: hub.CodeUnavailable, Op: "health", Message: resp.GetStatus().String()}
	}
	return nil
}

// ready waits for the connection to come up, bounded by the dial timeout.
func (c *Client) ready(ctx context.Context) error {
	if c.conn.GetState() == connectivity.Ready {
		return nil
	}
	readyCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	c.conn.Connect()
	if err := waitForReady(readyCtx, c.conn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &hub.Error{Code: hub.CodeUnavailable, Op: "open", Message: "wait for pipeline grpc readiness", Err: err}
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
	req, err := structpb.NewStruct(map[string]any{
		hub.FieldPipelineID: p.id,
		signature:           prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("build call request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := p.client.conn.Invoke(withToken(ctx, p.token), callMethod, req, resp); err != nil {
		return nil, fromStatus(ctx, "call", err)
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode call response: %w", err)
	}
	return hub.DecodeOutput(raw)
}

func withToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
