package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/weaveflow/weaveflow"
	"github.com/weaveflow/weaveflow/approval"
	"github.com/weaveflow/weaveflow/config"
	"github.com/weaveflow/weaveflow/engine"
	"github.com/weaveflow/weaveflow/logging"
	"github.com/weaveflow/weaveflow/trace"
)

var (
	runWorkflow  string
	runInput     string
	runInputFile string
	runOutput    string
	runTrace     string
	runApprove   string
)

var runCmd = &cobra.Command{
	Use:   "run <bundle>",
	Short: "Execute a workflow from a compiled bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorkflow, "workflow", "w", "", "workflow to execute (defaults to the bundle's only workflow)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "workflow input as a JSON object")
	runCmd.Flags().StringVar(&runInputFile, "input-file", "", "read the workflow input from a JSON file")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the workflow output to this file instead of stdout")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "write the run trace to this file")
	runCmd.Flags().StringVar(&runApprove, "approve", "", "approval mode: auto, reject or interactive")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	input, err := loadInput(runInput, runInputFile)
	if err != nil {
		return err
	}

	mode := cfg.ApprovalMode
	if runApprove != "" {
		mode = runApprove
	}
	handler, err := approvalHandler(mode)
	if err != nil {
		return err
	}

	rt, err := weaveflow.Open(args[0], func(o *weaveflow.Options) {
		o.Logger = logger
		o.Approvals = handler
		o.Hooks = []engine.Hook{&stepPrinter{out: os.Stderr}}
		o.CallTimeout = cfg.CallTimeout
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	workflow := runWorkflow
	if workflow == "" {
		names := rt.Workflows()
		if len(names) != 1 {
			return fmt.Errorf("bundle defines %d workflows; choose one with --workflow", len(names))
		}
		workflow = names[0]
	}

	ctx := cmd.Context()
	result, err := rt.Execute(ctx, workflow, input)

	// A fail-fast missing-input error happens before any step runs, so it is
	// safe to collect the values interactively and start over.
	var missing *engine.MissingInputError
	if errors.As(err, &missing) && isTerminal(os.Stdin) {
		if input, err = promptForInputs(missing.Missing, input); err != nil {
			return err
		}
		result, err = rt.Execute(ctx, workflow, input)
	}

	if err != nil {
		var failure *engine.RunFailure
		if errors.As(err, &failure) {
			writeTraceFile(cfg, failure.RunID, failure.Workflow, failure.Trace, logger)
			logger.Error("run failed",
				"run_id", failure.RunID,
				"cost_usd", failure.CostUSD,
				"error", failure.Err)
		}
		return err
	}

	writeTraceFile(cfg, result.RunID, result.Workflow, result.Trace, logger)
	logger.Info("run succeeded",
		"run_id", result.RunID,
		"steps", len(result.Trace),
		"cost_usd", result.CostUSD,
		"duration", result.Duration)

	return writeOutput(result.Output)
}

// loadInput merges the inline JSON object over the input file.
func loadInput(inline, file string) (map[string]any, error) {
	input := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("parse input file JSON: %w", err)
		}
	}
	if inline != "" {
		var override map[string]any
		if err := json.Unmarshal([]byte(inline), &override); err != nil {
			return nil, fmt.Errorf("parse input JSON: %w", err)
		}
		maps.Copy(input, override)
	}
	return input, nil
}

func approvalHandler(mode string) (approval.Handler, error) {
	switch mode {
	case config.ApprovalAuto:
		return approval.AutoApprove(nil), nil
	case config.ApprovalReject:
		return approval.AutoReject(nil), nil
	case config.ApprovalInteractive:
		return approval.NewInteractive(), nil
	default:
		return nil, fmt.Errorf("unknown approval mode %q (want auto, reject or interactive)", mode)
	}
}

// promptForInputs asks the terminal user for each missing input. Answers are
// decoded as JSON when possible so numbers, booleans and objects survive;
// anything else stays a string.
func promptForInputs(missing []string, existing map[string]any) (map[string]any, error) {
	input := maps.Clone(existing)
	if input == nil {
		input = map[string]any{}
	}
	reader := bufio.NewReader(os.Stdin)
	for _, name := range missing {
		fmt.Fprintf(os.Stderr, "%s: ", name)
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			return nil, fmt.Errorf("read input %q: %w", name, err)
		}
		input[name] = parseValue(line)
	}
	return input, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeTraceFile persists the trace when --trace or trace_dir asks for one.
// Failures are logged, not fatal; the run outcome matters more than the file.
func writeTraceFile(cfg *config.Config, runID, workflow string, events []trace.Event, logger logging.Logger) {
	path := runTrace
	if path == "" && cfg.TraceDir != "" {
		path = filepath.Join(cfg.TraceDir, runID+".json")
	}
	if path == "" {
		return
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("trace not written", "path", path, "error", err)
			return
		}
	}
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("trace not written", "path", path, "error", err)
		return
	}
	defer f.Close()

	doc := trace.Document{RunID: runID, Workflow: workflow, Events: events}
	if err := doc.WriteJSON(f); err != nil {
		logger.Warn("trace not written", "path", path, "error", err)
		return
	}
	logger.Info("trace written", "path", path)
}

func writeOutput(output map[string]any) error {
	var w io.Writer = os.Stdout
	if runOutput != "" {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// stepPrinter streams per-step progress to the terminal while a run
// executes.
type stepPrinter struct {
	out io.Writer
}

func (p *stepPrinter) RunStarted(runID, workflow string) {
	fmt.Fprintf(p.out, "run %s: workflow %q started\n", runID, workflow)
}

func (p *stepPrinter) StepCompleted(runID string, ev trace.Event) {
	status := "ok"
	if ev.Error != "" {
		status = "failed: " + ev.Error
	}
	fmt.Fprintf(p.out, "  [%d] %s (%s) %dms $%.4f %s\n",
		ev.Seq, ev.StepID, ev.Type, ev.DurationMS, ev.CostDelta, status)
}

func (p *stepPrinter) RunEnded(runID string, status engine.Status, err error) {
	fmt.Fprintf(p.out, "run %s: %s\n", runID, status)
}
