// Package generate is the façade callers use to turn a prompt into audio.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/classify"
	"github.com/rbright/musegen/internal/hub"
	"github.com/rbright/musegen/internal/resolver"
)

// DefaultSignatures is the input argument negotiation order.
var DefaultSignatures = []string{"text_inputs", "input"}

// Resolver is the generator-facing subset of resolver behavior.
type Resolver interface {
	Resolve(ctx context.Context) (resolver.Binding, error)
	Pin(signature string)
}

// Options configures a Generator.
type Options struct {
	// Signature pins the input argument name and skips negotiation.
	Signature string
	// Signatures is the negotiation order; DefaultSignatures when nil.
	Signatures []string
	Logger     *slog.Logger
}

// Generator resolves the pipeline lazily and invokes it once per request.
type Generator struct {
	resolver   Resolver
	pinned     string
	signatures []string
	logger     *slog.Logger
}

// New builds a generator over r.
func New(r Resolver, opts Options) *Generator {
	signatures := opts.Signatures
	if signatures == nil {
		signatures = DefaultSignatures
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		resolver:   r,
		pinned:     strings.TrimSpace(opts.Signature),
		signatures: signatures,
		logger:     logger.With("component", "generate"),
	}
}

// Generate returns audio for prompt. Resolution failures come back as
// *classify.Error; invocation failures are wrapped and returned without retry.
func (g *Generator) Generate(ctx context.Context, prompt string) (audio.Result, error) {
	binding, err := g.resolver.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, classify.Wrap(err)
	}

	candidates, negotiating := g.candidates(binding)
	var rejected error
	for _, signature := range candidates {
		started := time.Now()
		result, err := binding.Pipeline.Call(ctx, signature, prompt)
		latency := time.Since(started)

		if err == nil {
			if result == nil {
				return nil, fmt.Errorf("invoke pipeline %s: remote returned no audio", binding.Model)
			}
			if binding.Signature != signature {
				g.resolver.Pin(signature)
			}
			applyAdvertisedRate(result, binding.SampleRate)
			g.logger.Info("generation complete",
				"model", binding.Model,
				"signature", signature,
				"container", result.Container(),
				"latency_ms", latency.Milliseconds(),
			)
			return result, nil
		}

		if negotiating && hub.CodeOf(err) == hub.CodeBadArgument {
			g.logger.Info("call signature rejected", "signature", signature, "error", err.Error())
			rejected = err
			continue
		}
		g.logger.Error("generation failed",
			"model", binding.Model,
			"signature", signature,
			"latency_ms", latency.Milliseconds(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("invoke pipeline %s: %w", binding.Model, err)
	}

	if rejected == nil {
		rejected = errors.New("no call signatures configured")
	}
	return nil, fmt.Errorf("invoke pipeline %s: every call signature was rejected: %w", binding.Model, rejected)
}

// candidates returns the signatures to try and whether they are being negotiated.
func (g *Generator) candidates(binding resolver.Binding) ([]string, bool) {
	switch {
	case binding.Signature != "":
		return []string{binding.Signature}, false
	case g.pinned != "":
		return []string{g.pinned}, false
	default:
		return g.signatures, true
	}
}

// applyAdvertisedRate fills in the pipeline's advertised rate on results whose
// call response carried none.
func applyAdvertisedRate(result audio.Result, rate int) {
	if rate <= 0 {
		return
	}
	switch r := result.(type) {
	case *audio.Encoded:
		if r.SampleRate <= 0 {
			r.SampleRate = rate
		}
	case *audio.Buffer:
		if r.SampleRate <= 0 {
			r.SampleRate = rate
		}
	}
}
