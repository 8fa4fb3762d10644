// Package resolver finds a working remote pipeline by probing an ordered
// list of (model, task) candidates and memoizes the first success.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rbright/musegen/internal/classify"
	"github.com/rbright/musegen/internal/fsm"
	"github.com/rbright/musegen/internal/hub"
)

// Candidate is one model to try, with an optional pinned revision.
type Candidate struct {
	Model    string
	Revision string
}

// Task is one task-type key to open a pipeline with. An empty Key lets the
// remote infer the task from the model.
type Task struct {
	Key   string
	Label string
}

// DefaultFallbacks are public models tried after the configured one.
var DefaultFallbacks = []Candidate{
	{Model: "facebook/musicgen-melody"},
}

// DefaultTasks is the task probe order.
var DefaultTasks = []Task{
	{Key: "text-to-music", Label: "text-to-music"},
	{Key: "text_to_music", Label: "text_to_music"},
	{Key: "text-to-audio-synthesis", Label: "text-to-audio-synthesis"},
	{Key: "text-to-speech", Label: "text-to-speech"},
	{Key: "", Label: "auto-infer"},
}

// Options configures a Resolver.
type Options struct {
	Token    string
	ModelID  string
	Revision string
	Device   string

	// Fallbacks and Tasks default to DefaultFallbacks and DefaultTasks when nil.
	Fallbacks []Candidate
	Tasks     []Task

	Logger *slog.Logger
}

// Binding is the resolved pipeline and the candidate that produced it.
type Binding struct {
	Pipeline   hub.Pipeline
	Model      string
	Revision   string
	Task       Task
	Signature  string // advertised on open or pinned later; empty until known
	SampleRate int    // advertised on open; zero when unknown
}

// Attempt records one failed candidate.
type Attempt struct {
	Model    string
	Task     Task
	Category classify.Category
	Err      error
}

// Error reports that every candidate failed. It unwraps to the last failure.
type Error struct {
	Attempts []Attempt
	Last     error
}

func (e *Error) Error() string {
	if e.Last == nil {
		return "no pipeline candidates configured"
	}
	return fmt.Sprintf("no pipeline candidate succeeded after %d attempts: %v", len(e.Attempts), e.Last)
}

func (e *Error) Unwrap() error {
	return e.Last
}

// Resolver owns the process-wide pipeline binding.
type Resolver struct {
	backend hub.Backend
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	state   fsm.State
	binding *Binding
	lastErr error
	probes  int
}

// New builds a resolver over backend.
func New(backend hub.Backend, opts Options) *Resolver {
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultFallbacks
	}
	if opts.Tasks == nil {
		opts.Tasks = DefaultTasks
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		backend: backend,
		opts:    opts,
		logger:  logger.With("component", "resolver"),
		state:   fsm.StateUnresolved,
	}
}

// Candidates returns the model probe order: the configured model first, then
// fallbacks not already listed.
func (r *Resolver) Candidates() []Candidate {
	var out []Candidate
	seen := map[string]struct{}{}
	add := func(c Candidate) {
		c.Model = strings.TrimSpace(c.Model)
		if c.Model == "" {
			return
		}
		if _, ok := seen[c.Model]; ok {
			return
		}
		seen[c.Model] = struct{}{}
		out = append(out, c)
	}

	add(Candidate{Model: r.opts.ModelID, Revision: strings.TrimSpace(r.opts.Revision)})
	for _, c := range r.opts.Fallbacks {
		add(c)
	}
	return out
}

// Resolve returns the cached binding, probing candidates on first use.
// Concurrent callers are serialized so only one probe runs.
func (r *Resolver) Resolve(ctx context.Context) (Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == fsm.StateResolved && r.binding != nil {
		return *r.binding, nil
	}
	if err := r.transition(fsm.EventProbe); err != nil {
		return Binding{}, err
	}

	logger := r.logger.With("probe_id", uuid.NewString())
	if strings.TrimSpace(r.opts.Token) == "" {
		logger.Warn("no access token configured; probing without credentials")
	}

	var attempts []Attempt
	for _, cand := range r.Candidates() {
		for _, task := range r.opts.Tasks {
			if err := ctx.Err(); err != nil {
				return Binding{}, r.abort(logger, err)
			}

			revision := cand.Revision
			if revision == "" {
				revision = "latest"
			}
			r.probes++
			logger.Info("opening pipeline",
				"model", cand.Model,
				"revision", revision,
				"task", task.Label,
				"attempt", r.probes,
			)

			pipe, err := r.backend.Open(ctx, hub.Spec{
				Model:    cand.Model,
				Revision: cand.Revision,
				Task:     task.Key,
				Device:   r.opts.Device,
				Token:    r.opts.Token,
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Binding{}, r.abort(logger, ctxErr)
				}
				category := classify.Of(err)
				attempts = append(attempts, Attempt{Model: cand.Model, Task: task, Category: category, Err: err})
				logger.Warn("pipeline candidate failed",
					"model", cand.Model,
					"task", task.Label,
					"category", string(category),
					"error", err.Error(),
				)
				continue
			}

			binding := &Binding{
				Pipeline:   pipe,
				Model:      cand.Model,
				Revision:   cand.Revision,
				Task:       task,
				Signature:  pipe.Signature(),
				SampleRate: pipe.SampleRate(),
			}
			if err := r.transition(fsm.EventSucceed); err != nil {
				return Binding{}, err
			}
			r.binding = binding
			r.lastErr = nil
			logger.Info("pipeline resolved",
				"model", binding.Model,
				"task", task.Label,
				"pipeline_id", pipe.ID(),
				"signature", binding.Signature,
				"attempts", len(attempts)+1,
			)
			return *binding, nil
		}
	}

	resErr := &Error{Attempts: attempts}
	if len(attempts) > 0 {
		resErr.Last = attempts[len(attempts)-1].Err
	}
	if err := r.transition(fsm.EventFail); err != nil {
		return Binding{}, err
	}
	r.lastErr = resErr
	logger.Error("pipeline resolution failed", "attempts", len(attempts), "error", resErr.Error())
	return Binding{}, resErr
}

// Pin records the call signature the remote accepted on the cached binding.
func (r *Resolver) Pin(signature string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.binding == nil {
		return
	}
	r.binding.Signature = signature
}

// State returns the lifecycle state snapshot.
func (r *Resolver) State() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastError returns the most recent resolution failure, or nil.
func (r *Resolver) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Probes returns how many open attempts have been made.
func (r *Resolver) Probes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probes
}

func (r *Resolver) transition(event fsm.Event) error {
	next, err := fsm.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *Resolver) abort(logger *slog.Logger, err error) error {
	if tErr := r.transition(fsm.EventAbort); tErr != nil {
		return errors.Join(err, tErr)
	}
	logger.Info("pipeline resolution aborted", "error", err.Error())
	return err
}
