// Package ui provides terminal output components for the salus CLI.
//
// Components follow a "run once and exit" pattern: they render styled text
// with Lipgloss and return it as a string, leaving printing to the caller.
// The interactive dashboard lives in the tui package.
//
//   - Header: command banner showing the operation and its parameters
//   - Runner: header, then a step list, then a result box
//   - Result: success, warning and failure boxes
//   - RenderDeviceTable / RenderCompactList: thermostat listings
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Set Temperature",
//	    Command:   "salus set-temp 10000001 21.5",
//	    StepNames: []string{"Write setpoint", "Read back"},
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Detail, error) {
//	    onStep(1, ui.StepRunning, "")
//	    ...
//	})
//
// Logging is controlled separately through SALUS_LOG_LEVEL so that zap
// output does not interleave with the rendered boxes.
package ui
