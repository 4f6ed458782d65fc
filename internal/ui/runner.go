package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RunnerConfig holds configuration for a firmware command execution
type RunnerConfig struct {
	Title           string            // Command title (e.g., "Flash Firmware")
	Command         string            // Full command (e.g., "panda-guru flash")
	Params          map[string]string // Parameters to display in header
	TotalSteps      int               // Total number of steps (for progress)
	StepNames       []string          // Names for each step
	Verbose         bool              // Whether to show the USB transfer log
	Troubleshooting []string          // Tips shown on failure (defaults apply if empty)
	Output          io.Writer         // Output writer (default: os.Stdout)
}

// Runner orchestrates the UI for a firmware command execution.
// It manages the header → progress → result flow and provides
// callbacks for reporting progress.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	deviceLog []string
	startTime time.Time
	width     int
}

// NewRunner creates a new runner for a firmware command
func NewRunner(config RunnerConfig) *Runner {
	// Set defaults
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params)
	header.SetWidth(width)

	var progress *Progress
	if config.TotalSteps > 0 {
		progress = NewProgress("", config.TotalSteps)
		progress.SetWidth(width)
		if len(config.StepNames) > 0 {
			progress.SetStepNames(config.StepNames)
		}
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the function signature for the actual firmware operation.
// The operation receives a StepCallback to report progress.
type Operation func(onStep StepCallback) error

// Run executes the firmware operation with UI updates.
// It displays the header, tracks progress, and shows the result.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	stepCallback := r.createStepCallback()

	err := operation(stepCallback)
	duration := time.Since(r.startTime)

	if err != nil {
		r.printFailure(err, duration)
	} else {
		r.printSuccess(nil, duration)
	}

	return err
}

// RunWithResult executes the firmware operation and allows custom result handling.
// Returns the result details that were displayed.
func (r *Runner) RunWithResult(ctx context.Context, operation func(onStep StepCallback) (map[string]string, error)) (map[string]string, error) {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	stepCallback := r.createStepCallback()

	details, err := operation(stepCallback)
	duration := time.Since(r.startTime)

	if err != nil {
		r.printFailure(err, duration)
	} else {
		r.printSuccess(details, duration)
	}

	return details, err
}

// AppendDeviceLog records transfer lines for verbose display
func (r *Runner) AppendDeviceLog(lines ...string) {
	r.deviceLog = append(r.deviceLog, lines...)
}

// createStepCallback creates the step callback function
func (r *Runner) createStepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil {
			return
		}

		// Update step name if provided
		if name != "" && stepNumber > 0 && stepNumber <= len(r.progress.Steps) {
			r.progress.Steps[stepNumber-1].Name = name
		}

		r.progress.UpdateStep(stepNumber, status, message)

		if status == StepComplete || status == StepFailed || status == StepSkipped {
			step := r.progress.Steps[stepNumber-1]
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		} else if status == StepRunning {
			// Running line is overwritten when the step completes
			step := r.progress.Steps[stepNumber-1]
			_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(step)+"\r")
		}
	}
}

// printSuccess prints a success result with optional custom details
func (r *Runner) printSuccess(details map[string]string, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.Round(time.Millisecond).String()

	result := NewSuccessResult(r.config.Title+" complete", details)
	result.SetWidth(r.width)
	renderResult(r.output, result.Render())

	r.printDeviceLog()
}

// printFailure prints a failure result with troubleshooting
func (r *Runner) printFailure(err error, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	troubleshooting := r.config.Troubleshooting
	if len(troubleshooting) == 0 {
		troubleshooting = []string{
			"Check the USB cable and try a different port",
			"Unplug and replug the panda, then retry",
			"Verify no other process has the device open",
			"Run with --verbose for the full transfer log",
		}
	}

	result := NewFailureResult(r.config.Title+" failed", err, troubleshooting)
	result.SetWidth(r.width)
	renderResult(r.output, result.Render())

	r.printDeviceLog()
}

func (r *Runner) printDeviceLog() {
	if !r.config.Verbose || len(r.deviceLog) == 0 {
		return
	}
	_, _ = fmt.Fprintln(r.output)
	log := NewDeviceLog(r.deviceLog)
	log.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, log.Render())
}

// renderResult writes a rendered result box. When the target is the
// process stdout the content goes through the Bubble Tea run-once
// renderer; any other writer (tests, pipes) gets the raw render.
func renderResult(w io.Writer, content string) {
	if w == os.Stdout {
		if err := RenderOnce(content); err == nil {
			return
		}
	}
	_, _ = fmt.Fprintln(w, content)
}

// --- Simple helper functions for commands that don't need a full Runner ---

// PrintCommandHeader prints a styled command header
func PrintCommandHeader(title, command string, params map[string]string) {
	width := GetTerminalWidth()
	header := NewHeader(title, command, params)
	header.SetWidth(width)
	fmt.Println(header.Render())
	fmt.Println()
}

// PrintSuccess prints a styled success result
func PrintSuccess(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewSuccessResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	renderResult(os.Stdout, result.Render())
}

// PrintFailure prints a styled failure result
func PrintFailure(title string, err error, troubleshooting []string) {
	width := GetTerminalWidth()
	result := NewFailureResult(title, err, troubleshooting)
	result.SetWidth(width)
	fmt.Println()
	renderResult(os.Stdout, result.Render())
}

// PrintWarning prints a styled warning result
func PrintWarning(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewWarningResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	renderResult(os.Stdout, result.Render())
}

// PrintDeviceLog prints a styled transfer log box (for verbose mode)
func PrintDeviceLog(lines []string) {
	width := GetTerminalWidth()
	log := NewDeviceLog(lines)
	log.SetWidth(width)
	fmt.Println()
	fmt.Println(log.Render())
}

// PrintPleaseWait prints a styled "please wait" message for long-running operations.
// The message parameter should describe what's happening, e.g., "Waiting for DFU".
// The duration hint helps set user expectations, e.g., "up to 60 seconds".
func PrintPleaseWait(message string, durationHint string) {
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	hintStyle := lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	line := style.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + hintStyle.Render("("+durationHint+")")
	}
	line += style.Render("...")

	fmt.Println()
	fmt.Println(line)
	fmt.Println()
}
