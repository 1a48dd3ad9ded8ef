package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/config"
	"github.com/muurk/salusconnect/internal/credentials"
	"github.com/muurk/salusconnect/internal/discovery"
	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/mqttbridge"
	"github.com/muurk/salusconnect/internal/salus"
	"github.com/muurk/salusconnect/internal/server"
	"github.com/muurk/salusconnect/internal/version"
)

// Serve command flags
var (
	configPath   string
	listen       string
	pollInterval time.Duration
	sessionTTL   time.Duration
	mqttBroker   string
	noAdvertise  bool
	certPath     string
	keyPath      string
	logLevel     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Run the bridge until interrupted.

Account settings come from the same config file as 'salus'. The password must
be resolvable without a prompt: set account.password_ref to env:NAME or
ssm:/path, or export SALUS_PASSWORD.

Routes:
  GET  /healthz
  GET  /api/devices
  GET  /api/devices/{id}
  POST /api/devices/{id}/setpoint   {"celsius":21.5} or {"value":2150}
  GET  /ws
  GET  /metrics`,
	Example: `  # Defaults from the config file
  salus-bridge serve

  # Poll every 2 minutes and publish to MQTT
  salus-bridge serve --poll 2m --mqtt-broker tcp://192.168.1.10:1883

  # Serve HTTPS without mDNS advertisement
  salus-bridge serve --cert cert.pem --key key.pem --no-advertise`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default: $SALUS_CONFIG or the per-user config dir)")
	flags.StringVar(&listen, "listen", "", "Listen address (default from config, :8710)")
	flags.DurationVar(&pollInterval, "poll", 0, "Poll interval (default from config, 60s)")
	flags.DurationVar(&sessionTTL, "session-ttl", 0, "Reuse a sign-in for this long (0 signs in for every call)")
	flags.StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://host:1883 (disabled when empty)")
	flags.BoolVar(&noAdvertise, "no-advertise", false, "Do not advertise the bridge over mDNS")
	flags.StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	flags.StringVar(&keyPath, "key", "", "Path to TLS private key file")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	bridgeCfg := registry.Bridge

	client, err := newClient(ctx, registry)
	if err != nil {
		return err
	}
	thermostat := server.Serialize(client)

	var publishers []server.Publisher
	if bridgeCfg.MQTT.Broker != "" {
		mqttPassword, err := resolveOptional(ctx, bridgeCfg.MQTT.PasswordRef)
		if err != nil {
			return fmt.Errorf("failed to resolve MQTT password: %w", err)
		}
		mq, err := mqttbridge.New(mqttbridge.Config{
			Broker:      bridgeCfg.MQTT.Broker,
			TopicPrefix: bridgeCfg.MQTT.TopicPrefix,
			ClientID:    bridgeCfg.MQTT.ClientID,
			Username:    bridgeCfg.MQTT.Username,
			Password:    mqttPassword,
		}, thermostat)
		if err != nil {
			return err
		}
		if err := mq.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer mq.Close()
		publishers = append(publishers, mq)
	}

	srv, err := server.New(server.Config{
		Listen:       bridgeCfg.Listen,
		CertPath:     bridgeCfg.CertFile,
		KeyPath:      bridgeCfg.KeyFile,
		PollInterval: bridgeCfg.PollInterval(),
	}, thermostat, publishers...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listener, err := net.Listen("tcp", bridgeCfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", bridgeCfg.Listen, err)
	}

	if bridgeCfg.Advertise {
		go advertise(ctx, listener.Addr(), bridgeCfg.CertFile != "")
	}

	logging.Info("Bridge starting",
		zap.String("version", version.Version),
		zap.String("listen", listener.Addr().String()),
		zap.Duration("poll", bridgeCfg.PollInterval()),
		zap.Bool("tls", bridgeCfg.CertFile != ""),
		zap.Bool("mqtt", len(publishers) > 0),
	)

	return srv.Serve(ctx, listener)
}

// loadRegistry reads the config file and applies the environment and serve flags.
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

	b := registry.Bridge
	if listen != "" {
		b.Listen = listen
	}
	if pollInterval > 0 {
		b.PollIntervalSeconds = int(pollInterval.Round(time.Second) / time.Second)
	}
	if mqttBroker != "" {
		b.MQTT.Broker = mqttBroker
	}
	if noAdvertise {
		b.Advertise = false
	}
	if certPath != "" {
		b.CertFile = certPath
		b.KeyFile = keyPath
	}

	if errs := registry.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return registry, nil
}

func newClient(ctx context.Context, registry *config.Registry) (*salus.Client, error) {
	if registry.Account.Username == "" {
		return nil, errors.New("no username configured; set account.username or SALUS_USERNAME")
	}
	password, err := credentials.Resolve(ctx, registry.Account.PasswordRef)
	if err != nil {
		if errors.Is(err, credentials.ErrPromptRequired) {
			return nil, errors.New("the bridge cannot prompt for a password; set account.password_ref or SALUS_PASSWORD")
		}
		return nil, fmt.Errorf("failed to resolve password: %w", err)
	}

	return salus.NewClient(salus.Credentials{
		Username: registry.Account.Username,
		Password: password,
	},
		salus.WithBaseURL(registry.Account.BaseURL),
		salus.WithAcceptedModel(registry.Account.AcceptedModel),
		salus.WithTimeout(registry.Timeout()),
		salus.WithSessionReuse(sessionTTL),
		salus.WithLogger(logging.GetLogger()),
	)
}

// resolveOptional resolves ref, treating an empty reference as no secret.
func resolveOptional(ctx context.Context, ref string) (string, error) {
	secret, err := credentials.Resolve(ctx, ref)
	if errors.Is(err, credentials.ErrPromptRequired) {
		return "", nil
	}
	return secret, err
}

// advertise registers the bridge over mDNS until ctx is done
func advertise(ctx context.Context, addr net.Addr, tls bool) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		logging.Warn("Not advertising: listener is not TCP", zap.String("addr", addr.String()))
		return
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	instance := "salus-bridge on " + hostname

	txt := discovery.TXTRecords(map[string]string{
		"version": version.Version,
		"tls":     strconv.FormatBool(tls),
		"path":    "/api/devices",
	})
	if err := discovery.Advertise(ctx, instance, tcp.Port, txt); err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
	}
}
