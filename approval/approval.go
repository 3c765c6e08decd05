// Package approval pauses runs at human gates and resumes them with a
// decision. The gate is a channel handoff: the handler runs on its own
// goroutine while the run's goroutine selects on the decision, cancellation,
// and the remaining time budget.
package approval

import (
	"context"
	"errors"
	"time"

	"github.com/weaveflow/weaveflow/logging"
)

// Request describes one pending approval.
type Request struct {
	RunID       string    `json:"run_id"`
	Workflow    string    `json:"workflow"`
	StepID      string    `json:"step_id"`
	Capability  string    `json:"capability,omitempty"` // set when the gate fronts a write capability
	Payload     any       `json:"payload,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Decision resolves a request. Response is free-form handler output surfaced
// to the workflow under the step's saved value.
type Decision struct {
	Approved bool `json:"approved"`
	Response any  `json:"response,omitempty"`
}

// Handler produces decisions. Decide blocks until one is available or ctx is
// done.
type Handler interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Decision, error)

// Decide implements Handler.
func (f HandlerFunc) Decide(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// AutoApprove approves every request with a fixed response.
func AutoApprove(response any) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (Decision, error) {
		return Decision{Approved: true, Response: response}, nil
	})
}

// AutoReject rejects every request with a fixed response.
func AutoReject(response any) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (Decision, error) {
		return Decision{Approved: false, Response: response}, nil
	})
}

// ErrTimedOut reports that the decision window closed before the handler
// answered.
var ErrTimedOut = errors.New("approval request timed out")

// GateOptions configure a Gate.
type GateOptions struct {
	Logger logging.Logger
}

// Gate runs a handler under a per-request decision window.
type Gate struct {
	handler Handler
	logger  logging.Logger
}

// NewGate wraps a handler.
func NewGate(handler Handler, optFns ...func(o *GateOptions)) *Gate {
	opts := GateOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gate{handler: handler, logger: opts.Logger}
}

// Request asks the handler to decide. A timeout <= 0 waits until the handler
// answers or ctx is done; otherwise the window closes with ErrTimedOut. The
// handler's context is cancelled either way so it does not leak.
func (g *Gate) Request(ctx context.Context, req Request, timeout time.Duration) (Decision, error) {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	handlerCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		handlerCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		decision Decision
		err      error
	}
	ch := make(chan outcome, 1)
	go func() {
		d, err := g.handler.Decide(handlerCtx, req)
		ch <- outcome{d, err}
	}()

	g.logger.Info("approval requested",
		"run_id", req.RunID,
		"step_id", req.StepID,
		"capability", req.Capability,
	)

	select {
	case out := <-ch:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return Decision{}, ErrTimedOut
			}
			return Decision{}, out.err
		}
		g.logger.Info("approval decided",
			"run_id", req.RunID,
			"step_id", req.StepID,
			"approved", out.decision.Approved,
		)
		return out.decision, nil
	case <-handlerCtx.Done():
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		return Decision{}, ErrTimedOut
	}
}
