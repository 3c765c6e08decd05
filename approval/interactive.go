package approval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Interactive prompts a terminal user for each decision. When In is not a
// terminal the handler rejects immediately so unattended runs cannot hang on
// a prompt nobody will answer.
type Interactive struct {
	In  *os.File
	Out io.Writer
}

// NewInteractive prompts on stderr and reads from stdin.
func NewInteractive() *Interactive {
	return &Interactive{In: os.Stdin, Out: os.Stderr}
}

// Decide implements Handler.
func (h *Interactive) Decide(ctx context.Context, req Request) (Decision, error) {
	in := h.In
	if in == nil {
		in = os.Stdin
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}

	if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
		return Decision{Approved: false, Response: "no terminal attached"}, nil
	}

	fmt.Fprintf(out, "\nApproval required: workflow %s, step %s\n", req.Workflow, req.StepID)
	if req.Capability != "" {
		fmt.Fprintf(out, "Capability: %s\n", req.Capability)
	}
	fmt.Fprintf(out, "Payload:\n%s\n", renderPayload(req.Payload))
	fmt.Fprint(out, "Approve? [y/N]: ")

	reader := bufio.NewReader(in)
	answer, err := readLine(ctx, reader)
	if err != nil {
		return Decision{}, err
	}
	approved := strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")

	fmt.Fprint(out, "Response (optional): ")
	text, err := readLine(ctx, reader)
	if err != nil {
		return Decision{}, err
	}
	var response any
	if text != "" {
		response = text
	}
	return Decision{Approved: approved, Response: response}, nil
}

func renderPayload(payload any) string {
	if payload == nil {
		return "(none)"
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}

// readLine reads one line on a goroutine so cancellation is honored while
// the prompt is open.
func readLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- answer{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil && a.text == "" {
			return "", a.err
		}
		return a.text, nil
	}
}
