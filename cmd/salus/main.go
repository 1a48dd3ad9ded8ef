// Salus is a command-line client for Salus Connect thermostats.
//
// It signs in to the Salus Connect cloud, lists the SQ610 thermostats on the
// account, shows a single device and changes heating setpoints. An
// interactive dashboard and a LAN bridge scanner are also available.
//
// Usage:
//
//	salus [command] [flags]
//
// See 'salus --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/salusconnect/internal/config"
	"github.com/muurk/salusconnect/internal/credentials"
	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/salus"
	"github.com/muurk/salusconnect/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	username   string
	baseURL    string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "salus",
	Short: "Salus Connect thermostat client",
	Long: `A command-line client for Salus Connect thermostats.

Signs in to the Salus Connect cloud with your account, lists the SQ610
thermostats on it and changes their heating setpoints.

The password is never stored. It is read from the reference in the config
file (env:NAME or ssm:/path), from SALUS_PASSWORD, or prompted for.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			return logging.Initialize(logLevel)
		}
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default: $SALUS_CONFIG or the per-user config dir)")
	flags.StringVarP(&username, "username", "u", "", "Account email (overrides config and SALUS_USERNAME)")
	flags.StringVar(&baseURL, "base-url", "", "Salus Connect API base URL")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	flags.DurationVar(&timeout, "timeout", 0, "Per-request timeout (default from config, 30s)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setTempCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salus %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// loadRegistry reads the config file named by --config (or the default one)
// and overlays the environment and command-line flags.
func loadRegistry() (*config.Registry, error) {
	var (
		registry *config.Registry
		err      error
	)
	if configPath != "" {
		registry, err = config.LoadFile(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, err
	}

	registry.ApplyEnv(os.Getenv)
	if username != "" {
		registry.Account.Username = username
	}
	if baseURL != "" {
		registry.Account.BaseURL = baseURL
	}

	if errs := registry.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return registry, nil
}

// newClient builds a salus.Client from the registry, resolving the password
// reference and prompting on a terminal when none is configured.
func newClient(ctx context.Context, registry *config.Registry) (*salus.Client, error) {
	if registry.Account.Username == "" {
		return nil, errors.New("no username configured; pass --username, set SALUS_USERNAME or run 'salus config init'")
	}

	password, err := credentials.Resolve(ctx, registry.Account.PasswordRef)
	if errors.Is(err, credentials.ErrPromptRequired) {
		password, err = promptPassword(registry.Account.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve password: %w", err)
	}

	requestTimeout := registry.Timeout()
	if timeout > 0 {
		requestTimeout = timeout
	}

	opts := []salus.Option{
		salus.WithTimeout(requestTimeout),
		salus.WithLogger(logging.GetLogger()),
	}
	if registry.Account.BaseURL != "" {
		opts = append(opts, salus.WithBaseURL(registry.Account.BaseURL))
	}
	if registry.Account.AcceptedModel != "" {
		opts = append(opts, salus.WithAcceptedModel(registry.Account.AcceptedModel))
	}

	return salus.NewClient(salus.Credentials{
		Username: registry.Account.Username,
		Password: password,
	}, opts...)
}

func promptPassword(user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no password reference configured and stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(string(raw), "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
