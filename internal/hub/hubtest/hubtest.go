// Package hubtest provides a scripted in-memory hub.Backend for tests.
package hubtest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/hub"
)

// Call records one pipeline invocation.
type Call struct {
	PipelineID string
	Model      string
	Task       string
	Signature  string
	Prompt     string
}

// Backend opens fake pipelines. Nil funcs accept everything.
type Backend struct {
	// OpenFunc decides whether opening spec fails.
	OpenFunc func(spec hub.Spec) error
	// CallFunc produces the result for one call.
	CallFunc func(spec hub.Spec, signature, prompt string) (audio.Result, error)
	// Advertise is reported as the opened pipeline's signature.
	Advertise string
	// Rate is reported as the opened pipeline's output sample rate.
	Rate int

	mu    sync.Mutex
	opens []hub.Spec
	calls []Call
}

// Open records spec and returns a pipeline unless OpenFunc rejects it.
func (b *Backend) Open(ctx context.Context, spec hub.Spec) (hub.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.opens = append(b.opens, spec)
	b.mu.Unlock()

	if b.OpenFunc != nil {
		if err := b.OpenFunc(spec); err != nil {
			return nil, err
		}
	}
	return &pipeline{backend: b, id: uuid.NewString(), spec: spec}, nil
}

// Opens returns every open attempt in order.
func (b *Backend) Opens() []hub.Spec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]hub.Spec(nil), b.opens...)
}

// Calls returns every call in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

type pipeline struct {
	backend *Backend
	id      string
	spec    hub.Spec
}

func (p *pipeline) ID() string        { return p.id }
func (p *pipeline) Signature() string { return p.backend.Advertise }
func (p *pipeline) SampleRate() int   { return p.backend.Rate }

func (p *pipeline) Call(ctx context.Context, signature, prompt string) (audio.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.backend.mu.Lock()
	p.backend.calls = append(p.backend.calls, Call{
		PipelineID: p.id,
		Model:      p.spec.Model,
		Task:       p.spec.Task,
		Signature:  signature,
		Prompt:     prompt,
	})
	p.backend.mu.Unlock()

	if p.backend.CallFunc != nil {
		return p.backend.CallFunc(p.spec, signature, prompt)
	}
	return &audio.Buffer{Samples: []float32{0, 0.25, -0.25, 0}, Channels: 1}, nil
}

// Reject returns an OpenFunc failing every spec for which fail reports true.
func Reject(code hub.Code, fail func(spec hub.Spec) bool) func(hub.Spec) error {
	return func(spec hub.Spec) error {
		if fail(spec) {
			return &hub.Error{Code: code, Op: "open", Message: "rejected " + spec.Model + " " + spec.Task}
		}
		return nil
	}
}
