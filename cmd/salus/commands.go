package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/salusconnect/internal/config"
	"github.com/muurk/salusconnect/internal/discovery"
	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/salus"
	"github.com/muurk/salusconnect/internal/tui"
	"github.com/muurk/salusconnect/internal/ui"
)

// Command flags
var (
	devicesFormat string
	showFormat    string
	scanFormat    string
	rawValue      bool
	verifyWrite   bool
	scanTimeout   time.Duration
	forceInit     bool
)

// loginCmd verifies the account credentials
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and verify the account credentials",
	Long: `Sign in to Salus Connect and report whether the credentials were accepted.

No token is written to disk. Every other command signs in again.`,
	Example: `  # Sign in with the account from the config file
  salus login

  # Sign in as a different account
  SALUS_PASSWORD=secret salus login --username me@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	client, err := newClient(cmd.Context(), registry)
	if err != nil {
		return err
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Sign In",
		Command: "salus login",
		Params: []ui.Detail{
			{Key: "Account", Value: registry.Account.Username},
			{Key: "Server", Value: client.BaseURL()},
		},
		StepNames: []string{"Sign in to Salus Connect"},
	})

	return runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Detail, error) {
		onStep(1, ui.StepRunning, "")
		session, err := client.Login(ctx)
		if err != nil {
			return nil, err
		}
		onStep(1, ui.StepComplete, "")
		return []ui.Detail{
			{Key: "Token", Value: logging.RedactToken(session.Token)},
		}, nil
	})
}

// devicesCmd lists the thermostats on the account
var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"ls"},
	Short:   "List thermostats on the account",
	Long: `List every SQ610 thermostat on the account with its current
temperature, heating setpoint, humidity and heating state.

Devices of other models are skipped.`,
	Example: `  # Table output
  salus devices

  # One line per device
  salus devices --format compact

  # JSON array, suitable for scripts
  salus devices --format json`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesFormat, "format", "", "Output format: table, compact, json (default from config)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	format := devicesFormat
	if format == "" {
		format = registry.Preferences.OutputFormat
	}
	switch format {
	case config.FormatTable, config.FormatCompact, config.FormatJSON:
	default:
		return fmt.Errorf("unknown format %q (use table, compact or json)", format)
	}

	client, err := newClient(cmd.Context(), registry)
	if err != nil {
		return err
	}

	summaries, err := client.ListDevices(cmd.Context())
	if err != nil {
		fmt.Println(ui.NewErrorResult("Listing devices failed", err).Render())
		return err
	}

	switch format {
	case config.FormatJSON:
		out, err := salus.EncodeSummaries(summaries)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case config.FormatCompact:
		if len(summaries) > 0 {
			fmt.Println(ui.RenderCompactList(summaries, registry.Nicknames()))
		}
	default:
		fmt.Println(ui.RenderDeviceTable(summaries, registry.Nicknames()))
	}
	return nil
}

// showCmd prints one device's state
var showCmd = &cobra.Command{
	Use:   "show <dsn>",
	Short: "Show the state of one thermostat",
	Long: `Fetch the properties of a single device and print the reduced state:
display name, temperature, heating setpoint, humidity and running mode.`,
	Example: `  # Detailed output
  salus show 10000001

  # JSON output
  salus show 10000001 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", "detailed", "Output format: detailed, json")
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := salus.ValidateDeviceID(args[0]); err != nil {
		return err
	}
	if showFormat != "detailed" && showFormat != config.FormatJSON {
		return fmt.Errorf("unknown format %q (use detailed or json)", showFormat)
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	client, err := newClient(cmd.Context(), registry)
	if err != nil {
		return err
	}

	state, err := client.DeviceState(cmd.Context(), args[0])
	if err != nil {
		fmt.Println(ui.NewErrorResult("Reading device failed", err).Render())
		return err
	}

	if showFormat == config.FormatJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode device state: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(state.FormatDetailed())
	if nickname := registry.Nicknames()[state.ID]; nickname != "" {
		fmt.Printf("Nickname:         %s\n", nickname)
	}
	return nil
}

// setTempCmd writes a new heating setpoint
var setTempCmd = &cobra.Command{
	Use:   "set-temp <dsn> <celsius>",
	Short: "Set the heating setpoint of a thermostat",
	Long: `Set the heating setpoint of a thermostat.

The value is in degrees Celsius and must lie between 5 and 35. With --raw the
value is sent as-is in hundredths of a degree (500 to 3500).

With --verify the device is read back until it reports the new setpoint.`,
	Example: `  # Set 21.5°C
  salus set-temp 10000001 21.5

  # Same, in the device's own unit
  salus set-temp 10000001 2150 --raw

  # Wait until the thermostat reports the new value
  salus set-temp 10000001 21.5 --verify`,
	Args: cobra.ExactArgs(2),
	RunE: runSetTemp,
}

func init() {
	setTempCmd.Flags().BoolVar(&rawValue, "raw", false, "Treat the value as hundredths of a degree")
	setTempCmd.Flags().BoolVar(&verifyWrite, "verify", false, "Read the device back until it reports the new setpoint")
}

func runSetTemp(cmd *cobra.Command, args []string) error {
	id := args[0]
	value, err := parseSetpointArg(args[1], rawValue)
	if err != nil {
		return err
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	client, err := newClient(cmd.Context(), registry)
	if err != nil {
		return err
	}

	label := id
	if nickname := registry.Nicknames()[id]; nickname != "" {
		label = fmt.Sprintf("%s (%s)", nickname, id)
	}

	steps := []string{"Validate setpoint", "Write setpoint"}
	if verifyWrite {
		steps = append(steps, "Confirm on device")
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Set Temperature",
		Command: "salus set-temp " + strings.Join(args, " "),
		Params: []ui.Detail{
			{Key: "Device", Value: label},
			{Key: "Setpoint", Value: ui.FormatCelsius(value)},
		},
		StepNames: steps,
	})

	return runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Detail, error) {
		onStep(1, ui.StepRunning, "")
		if err := salus.ValidateDeviceID(id); err != nil {
			return nil, err
		}
		if err := salus.ValidateSetpoint(value); err != nil {
			return nil, err
		}
		onStep(1, ui.StepComplete, fmt.Sprintf("%.0f", value))

		onStep(2, ui.StepRunning, "")
		status, err := client.UpdateTemperature(ctx, id, value)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, salus.RejectedSetpointError(status, id)
		}
		onStep(2, ui.StepComplete, fmt.Sprintf("HTTP %d", status))

		details := []ui.Detail{
			{Key: "Status", Value: strconv.Itoa(status)},
		}
		if !verifyWrite {
			return details, nil
		}

		onStep(3, ui.StepRunning, "")
		result := client.VerifySetpoint(ctx, id, value, salus.DefaultVerificationOptions())
		if !result.Success {
			return nil, result.Error
		}
		onStep(3, ui.StepComplete, fmt.Sprintf("%d read(s)", result.Attempts))
		return append(details, ui.Detail{Key: "Reported", Value: ui.FormatCelsius(result.Actual.HeatingSetpoint)}), nil
	})
}

// parseSetpointArg turns the command-line value into hundredths of a degree
func parseSetpointArg(arg string, raw bool) (float64, error) {
	if raw {
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, salus.NewValidationError(fmt.Sprintf("invalid raw setpoint %q", arg))
		}
		return value, salus.ValidateSetpoint(value)
	}
	return tui.ParseCelsius(arg)
}

// dashboardCmd starts the interactive dashboard
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive thermostat dashboard",
	Long: `Open a full-screen dashboard listing the account's thermostats.

Keys: s set a new temperature, r refresh, / filter, q quit.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return fmt.Errorf("the dashboard needs an interactive terminal; use 'salus devices' instead")
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	client, err := newClient(cmd.Context(), registry)
	if err != nil {
		return err
	}

	return tui.Run(cmd.Context(), client, tui.Options{
		Nicknames: registry.Nicknames(),
		Timeout:   registry.Timeout(),
	})
}

// scanCmd browses the LAN for salus-bridge instances
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find salus-bridge instances on the local network",
	Long: `Browse mDNS for salus-bridge instances advertising ` + discovery.ServiceType + `.

Prints each bridge's name and the base URL of its HTTP API.`,
	Example: `  # Scan for 5 seconds
  salus scan

  # Scan longer on a slow network
  salus scan --scan-timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "How long to wait for answers")
	scanCmd.Flags().StringVar(&scanFormat, "format", config.FormatTable, "Output format: table, json")
}

func runScan(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	if scanFormat != config.FormatJSON {
		fmt.Printf("Scanning for bridges (%s)...\n", scanTimeout)
	}
	bridges, err := scanner.ScanWithContext(cmd.Context())
	if err != nil {
		return err
	}

	if scanFormat == config.FormatJSON {
		data, err := json.MarshalIndent(bridges, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode bridges: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(bridges) == 0 {
		fmt.Println(ui.NewWarningResult("No bridges found",
			ui.Detail{Key: "Service", Value: discovery.ServiceType},
			ui.Detail{Key: "Hint", Value: "Is salus-bridge running with advertising enabled?"},
		).Render())
		return nil
	}

	for _, b := range bridges {
		v := b.GetMetadata("version")
		if v == "" {
			v = "unknown"
		}
		fmt.Printf("%-24s %-32s version %s\n", b.Instance, b.BaseURL(), v)
	}
	return nil
}

// configCmd groups config file helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file.

The account username is taken from --username or SALUS_USERNAME. The password
is never written; password_ref defaults to env:SALUS_PASSWORD.`,
	Example: `  salus config init --username me@example.com`,
	Args:    cobra.NoArgs,
	RunE:    runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <dsn> [name]",
	Short: "Set or clear a device nickname",
	Long: `Set the nickname shown for a device in listings and the dashboard.
Omit the name to remove it.`,
	Example: `  salus config nickname 10000001 Lounge
  salus config nickname 10000001`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigNickname,
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configNicknameCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	user := username
	if user == "" {
		user = os.Getenv(config.EnvUsername)
	}

	if forceInit {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if _, err := config.CreateDefaultConfig(path, user); err != nil {
		return err
	}

	fmt.Println(ui.NewSuccessResult("Configuration written",
		ui.Detail{Key: "Path", Value: path},
		ui.Detail{Key: "Username", Value: displayOrDash(user)},
		ui.Detail{Key: "Password", Value: "env:" + config.EnvPassword},
	).Render())
	return nil
}

func runConfigNickname(cmd *cobra.Command, args []string) error {
	if err := salus.ValidateDeviceID(args[0]); err != nil {
		return err
	}

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	registry, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	nickname := ""
	if len(args) == 2 {
		nickname = strings.TrimSpace(args[1])
	}
	registry.SetDeviceNickname(args[0], nickname)

	if err := registry.SaveTo(path); err != nil {
		return err
	}

	if nickname == "" {
		fmt.Printf("Removed nickname for %s\n", args[0])
	} else {
		fmt.Printf("%s is now %q\n", args[0], nickname)
	}
	return nil
}

func displayOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
