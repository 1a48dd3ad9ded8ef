package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one line of a multi-step operation
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // Optional note, e.g. "HTTP 201"
}

// StepCallback is how an operation reports progress.
type StepCallback func(stepNumber int, status StepStatus, message string)

// Operation is the work a Runner executes. It returns details for the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Detail, error)

// RunnerConfig holds configuration for a Runner
type RunnerConfig struct {
	Title     string   // e.g., "Set Temperature"
	Command   string   // e.g., "salus set-temp 10000001 21.5"
	Params    []Detail // Shown in the header
	StepNames []string
	Output    io.Writer // Default os.Stdout
}

// Runner prints header, then steps as they finish, then a result box.
type Runner struct {
	config RunnerConfig
	steps  []Step
	out    io.Writer
	width  int
}

// NewRunner creates a runner for a multi-step command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	steps := make([]Step, len(config.StepNames))
	for i, name := range config.StepNames {
		steps[i] = Step{Number: i + 1, Name: name}
	}

	return &Runner{
		config: config,
		steps:  steps,
		out:    config.Output,
		width:  GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (r *Runner) SetWidth(width int) *Runner {
	r.width = width
	return r
}

// Steps returns a copy of the current step states
func (r *Runner) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Run executes op and renders its progress. The error from op is returned unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	header := NewHeader(r.config.Title, r.config.Command, r.config.Params...).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(ctx, r.onStep)
	elapsed := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		// Anything still running when the operation failed is marked failed
		for i := range r.steps {
			if r.steps[i].Status == StepRunning {
				r.steps[i].Status = StepFailed
				_, _ = fmt.Fprintln(r.out, r.renderStepLine(r.steps[i]))
			}
		}
		result := NewErrorResult(r.config.Title+" failed", err).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, result.Render())
		return err
	}

	details = append(details, Detail{Key: "Duration", Value: elapsed.String()})
	result := NewSuccessResult(r.config.Title+" complete", details...).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, result.Render())
	return nil
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(r.steps) {
		return
	}
	step := &r.steps[stepNumber-1]
	step.Status = status
	step.Message = message

	switch status {
	case StepRunning:
		// Overwritten in place when the step finishes
		_, _ = fmt.Fprint(r.out, r.renderStepLine(*step)+"\r")
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.out, r.renderStepLine(*step))
	}
}

func (r *Runner) renderStepLine(step Step) string {
	var marker, name string
	switch step.Status {
	case StepComplete:
		marker, name = StepCompleteStyle.Render(StepMarkerComplete), StepCompleteStyle.Render(step.Name)
	case StepRunning:
		marker, name = StepRunningStyle.Render(StepMarkerRunning), StepRunningStyle.Render(step.Name)
	case StepFailed:
		marker, name = ErrorTitleStyle.Render(FailureMarker), ErrorTitleStyle.Render(step.Name)
	case StepSkipped:
		marker, name = StepPendingStyle.Render("-"), StepPendingStyle.Render(step.Name)
	default:
		marker, name = StepPendingStyle.Render(StepMarkerPending), StepPendingStyle.Render(step.Name)
	}

	padding := 40 - len([]rune(step.Name))
	if padding < 1 {
		padding = 1
	}

	line := fmt.Sprintf("  [%d/%d] %s%s%s", step.Number, len(r.steps), name, strings.Repeat(" ", padding), marker)
	if step.Message != "" {
		line += "  " + StepNoteStyle.Render("("+step.Message+")")
	}
	return line
}
