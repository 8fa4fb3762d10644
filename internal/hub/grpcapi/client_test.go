package grpcapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/hub"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type pipelinesServer interface {
	Open(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Call(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unary(call func(pipelinesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		return call(srv.(pipelinesServer), ctx, in)
	}
}

var pipelinesServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*pipelinesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: unary(pipelinesServer.Open)},
		{MethodName: "Call", Handler: unary(pipelinesServer.Call)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "musegen/hub/v1/pipelines.proto",
}

type testPipelinesServer struct {
	openErr   error
	callErr   error
	callAudio []byte

	mu    sync.Mutex
	auth  []string
	opens []map[string]any
	calls []map[string]any
}

func (s *testPipelinesServer) record(ctx context.Context, into *[]map[string]any, req *structpb.Struct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, _ := metadata.FromIncomingContext(ctx)
	s.auth = append(s.auth, strings.Join(md.Get("authorization"), ","))
	*into = append(*into, req.AsMap())
}

func (s *testPipelinesServer) Open(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.record(ctx, &s.opens, req)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return structpb.NewStruct(map[string]any{
		"pipeline_id": "grpc-1",
		"input_arg":   "input",
		"sample_rate": 32000,
	})
}

func (s *testPipelinesServer) Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.record(ctx, &s.calls, req)
	if s.callErr != nil {
		return nil, s.callErr
	}
	data := s.callAudio
	if data == nil {
		data = []byte("fLaC")
	}
	return structpb.NewStruct(map[string]any{
		"output": map[string]any{
			"output_audio": base64.StdEncoding.EncodeToString(data),
			"format":       "flac",
		},
	})
}

func startTestServer(t *testing.T, srv *testPipelinesServer) (string, *health.Server) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&pipelinesServiceDesc, srv)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String(), healthServer
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := New(Options{Endpoint: "grpc://" + endpoint, DialTimeout: 2 * time.Second, UserAgent: "musegen/test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRejectsEmptyEndpoint(t *testing.T) {
	_, err := New(Options{Endpoint: "  "})
	require.Error(t, err)
}

func TestOpenAndCallRoundTrip(t *testing.T) {
	srv := &testPipelinesServer{}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	pipe, err := client.Open(context.Background(), hub.Spec{
		Model:    "damo/audio_diff_rhythm_text_to_music",
		Revision: "v1.0.0",
		Task:     "text-to-music",
		Device:   "cpu",
		Token:    "secret",
	})
	require.NoError(t, err)
	require.Equal(t, "grpc-1", pipe.ID())
	require.Equal(t, "input", pipe.Signature())
	require.Equal(t, 32000, pipe.SampleRate())

	result, err := pipe.Call(context.Background(), "input", "lofi beat")
	require.NoError(t, err)
	enc, ok := result.(*audio.Encoded)
	require.True(t, ok)
	require.Equal(t, "flac", enc.Container())
	require.Equal(t, []byte("fLaC"), enc.Data)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, []string{"Bearer secret", "Bearer secret"}, srv.auth)
	require.Equal(t, map[string]any{
		"model":             "damo/audio_diff_rhythm_text_to_music",
		"model_revision":    "v1.0.0",
		"task":              "text-to-music",
		"device":            "cpu",
		"trust_remote_code": true,
	}, srv.opens[0])
	require.Equal(t, map[string]any{"pipeline_id": "grpc-1", "input": "lofi beat"}, srv.calls[0])
}

func TestOpenWithoutTaskOrToken(t *testing.T) {
	srv := &testPipelinesServer{}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	_, err := client.Open(context.Background(), hub.Spec{Model: "facebook/musicgen-melody"})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, []string{""}, srv.auth)
	require.NotContains(t, srv.opens[0], "task")
	require.NotContains(t, srv.opens[0], "model_revision")
}

func TestStatusCodesMapToHubCodes(t *testing.T) {
	cases := map[codes.Code]hub.Code{
		codes.Unauthenticated:    hub.CodeUnauthenticated,
		codes.PermissionDenied:   hub.CodeUnauthenticated,
		codes.Unimplemented:      hub.CodeTaskUnsupported,
		codes.NotFound:           hub.CodeModelNotFound,
		codes.InvalidArgument:    hub.CodeBadArgument,
		codes.FailedPrecondition: hub.CodeDependency,
		codes.Unavailable:        hub.CodeUnavailable,
		codes.ResourceExhausted:  hub.CodeUnavailable,
		codes.Internal:           hub.CodeUnknown,
	}
	for grpcCode, want := range cases {
		srv := &testPipelinesServer{openErr: status.Error(grpcCode, "rejected")}
		endpoint, _ := startTestServer(t, srv)
		client := newTestClient(t, endpoint)

		_, err := client.Open(context.Background(), hub.Spec{Model: "m"})
		require.Error(t, err)
		require.Equal(t, want, hub.CodeOf(err), grpcCode.String())
		require.Contains(t, err.Error(), "rejected")
	}
}

func TestErrorInfoReasonOverridesStatusCode(t *testing.T) {
	st, err := status.New(codes.FailedPrecondition, "datasets too new").WithDetails(&errdetails.ErrorInfo{
		Reason: "incompatible",
		Domain: ErrorDomain,
	})
	require.NoError(t, err)

	srv := &testPipelinesServer{openErr: st.Err()}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	_, err = client.Open(context.Background(), hub.Spec{Model: "m"})
	require.Equal(t, hub.CodeIncompatible, hub.CodeOf(err))
}

func TestCallAcceptsResponsesAboveGRPCDefaultLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5a}, 6<<20)
	srv := &testPipelinesServer{callAudio: payload}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	pipe, err := client.Open(context.Background(), hub.Spec{Model: "m"})
	require.NoError(t, err)

	result, err := pipe.Call(context.Background(), "input", "long ambient drone")
	require.NoError(t, err)
	enc, ok := result.(*audio.Encoded)
	require.True(t, ok)
	require.Len(t, enc.Data, len(payload))
}

func TestCallBadArgument(t *testing.T) {
	srv := &testPipelinesServer{callErr: status.Error(codes.InvalidArgument, "unexpected keyword")}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	pipe, err := client.Open(context.Background(), hub.Spec{Model: "m"})
	require.NoError(t, err)

	_, err = pipe.Call(context.Background(), "text_inputs", "x")
	require.Equal(t, hub.CodeBadArgument, hub.CodeOf(err))
}

func TestOpenUnreachableIsUnavailable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := lis.Addr().String()
	require.NoError(t, lis.Close())

	client, err := New(Options{Endpoint: endpoint, DialTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Open(context.Background(), hub.Spec{Model: "m"})
	require.Error(t, err)
	require.Equal(t, hub.CodeUnavailable, hub.CodeOf(err))
}

func TestOpenCancelledContext(t *testing.T) {
	srv := &testPipelinesServer{}
	endpoint, _ := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Open(ctx, hub.Spec{Model: "m"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHealth(t *testing.T) {
	srv := &testPipelinesServer{}
	endpoint, healthServer := startTestServer(t, srv)
	client := newTestClient(t, endpoint)

	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, client.Health(context.Background()))

	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	err := client.Health(context.Background())
	require.Error(t, err)
	require.Equal(t, hub.CodeUnavailable, hub.CodeOf(err))
	require.Contains(t, err.Error(), "NOT_SERVING")
}
