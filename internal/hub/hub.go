// Package hub defines the transport-neutral contract for remote model pipelines:
// open a pipeline for (model, task), then call it with a prompt.
package hub

import (
	"context"

	"github.com/rbright/musegen/internal/audio"
)

// Wire field names shared by the HTTP and gRPC transports.
const (
	FieldModel           = "model"
	FieldTask            = "task"
	FieldRevision        = "model_revision"
	FieldDevice          = "device"
	FieldTrustRemoteCode = "trust_remote_code"
	FieldPipelineID      = "pipeline_id"
	FieldInputArg        = "input_arg"
	FieldSampleRate      = "sample_rate"
	FieldOutputAudio     = "output_audio"
	FieldCode            = "code"
	FieldMessage         = "message"
)

// Spec addresses one pipeline on the remote service.
type Spec struct {
	Model    string
	Revision string // empty means latest
	Task     string // empty lets the remote infer the task from the model
	Device   string
	Token    string
}

// Backend opens remote pipelines.
type Backend interface {
	Open(ctx context.Context, spec Spec) (Pipeline, error)
}

// HealthChecker is implemented by backends that can probe the remote cheaply.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Pipeline is an opened remote pipeline handle.
type Pipeline interface {
	ID() string
	// Signature is the input argument name the remote advertised on open, or "".
	Signature() string
	// SampleRate is the output rate the remote advertised on open, or 0.
	SampleRate() int
	Call(ctx context.Context, signature, prompt string) (audio.Result, error)
}
