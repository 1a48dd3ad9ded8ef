package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/salusconnect/internal/salus"
)

// CurrentVersion is the only config schema version understood
const CurrentVersion = 1

// Environment overrides applied by ApplyEnv
const (
	EnvUsername = "SALUS_USERNAME"
	EnvPassword = "SALUS_PASSWORD"
	EnvBaseURL  = "SALUS_BASE_URL"
)

// Output formats accepted in Preferences.OutputFormat
const (
	FormatTable   = "table"
	FormatCompact = "compact"
	FormatJSON    = "json"
)

// Registry represents the entire user configuration file.
// It stores account settings, device labels and bridge settings.
// Device readings are never written here.
type Registry struct {
	Version     int                `yaml:"version"`
	Account     *Account           `yaml:"account,omitempty"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by DSN
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	Bridge      *Bridge            `yaml:"bridge,omitempty"`
}

// Account holds the Salus Connect sign-in settings.
// The password itself is NEVER stored; PasswordRef points at where to find it.
type Account struct {
	Username      string `yaml:"username"`
	PasswordRef   string `yaml:"password_ref,omitempty"` // env:NAME, ssm:/path, or empty to prompt
	BaseURL       string `yaml:"base_url,omitempty"`
	AcceptedModel string `yaml:"accepted_model,omitempty"`
}

// Device represents user-defined metadata for a single thermostat.
type Device struct {
	Nickname string `yaml:"nickname,omitempty"`
}

// Preferences represents CLI-wide user preferences.
type Preferences struct {
	OutputFormat   string `yaml:"output_format"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Bridge configures salus-bridge.
type Bridge struct {
	Listen              string `yaml:"listen"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	Advertise           bool   `yaml:"advertise"`
	CertFile            string `yaml:"cert_file,omitempty"`
	KeyFile             string `yaml:"key_file,omitempty"`
	MQTT                *MQTT  `yaml:"mqtt,omitempty"`
}

// MQTT configures the optional MQTT publisher of the bridge.
// An empty Broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	PasswordRef string `yaml:"password_ref,omitempty"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		OutputFormat:   FormatTable,
		TimeoutSeconds: int(salus.DefaultTimeout / time.Second),
	}
}

func defaultBridge() *Bridge {
	return &Bridge{
		Listen:              ":8710",
		PollIntervalSeconds: 60,
		Advertise:           true,
		MQTT: &MQTT{
			TopicPrefix: "salus",
		},
	}
}

func defaultAccount() *Account {
	return &Account{
		PasswordRef:   "env:" + EnvPassword,
		BaseURL:       salus.DefaultBaseURL,
		AcceptedModel: salus.AcceptedModel,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Account:     defaultAccount(),
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
		Bridge:      defaultBridge(),
	}
}

// fillDefaults replaces missing sections of a loaded file with defaults.
func (r *Registry) fillDefaults() {
	if r.Account == nil {
		r.Account = defaultAccount()
	}
	if r.Account.BaseURL == "" {
		r.Account.BaseURL = salus.DefaultBaseURL
	}
	if r.Account.AcceptedModel == "" {
		r.Account.AcceptedModel = salus.AcceptedModel
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	if r.Preferences.OutputFormat == "" {
		r.Preferences.OutputFormat = FormatTable
	}
	if r.Preferences.TimeoutSeconds == 0 {
		r.Preferences.TimeoutSeconds = defaultPreferences().TimeoutSeconds
	}
	if r.Bridge == nil {
		r.Bridge = defaultBridge()
	}
	if r.Bridge.PollIntervalSeconds == 0 {
		r.Bridge.PollIntervalSeconds = defaultBridge().PollIntervalSeconds
	}
	if r.Bridge.Listen == "" {
		r.Bridge.Listen = defaultBridge().Listen
	}
	if r.Bridge.MQTT == nil {
		r.Bridge.MQTT = &MQTT{}
	}
	if r.Bridge.MQTT.TopicPrefix == "" {
		r.Bridge.MQTT.TopicPrefix = "salus"
	}
}

// ApplyEnv overlays SALUS_USERNAME, SALUS_PASSWORD and SALUS_BASE_URL.
// SALUS_PASSWORD is not copied; the password reference is pointed at it.
func (r *Registry) ApplyEnv(getenv func(string) string) {
	r.fillDefaults()

	if v := getenv(EnvUsername); v != "" {
		r.Account.Username = v
	}
	if getenv(EnvPassword) != "" {
		r.Account.PasswordRef = "env:" + EnvPassword
	}
	if v := getenv(EnvBaseURL); v != "" {
		r.Account.BaseURL = v
	}
}

// Timeout returns the configured request timeout.
func (r *Registry) Timeout() time.Duration {
	if r.Preferences == nil || r.Preferences.TimeoutSeconds <= 0 {
		return salus.DefaultTimeout
	}
	return time.Duration(r.Preferences.TimeoutSeconds) * time.Second
}

// PollInterval returns the bridge poll interval.
func (b *Bridge) PollInterval() time.Duration {
	if b == nil || b.PollIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(b.PollIntervalSeconds) * time.Second
}

// Validate checks the registry for values the tools cannot use.
// Returns a slice of validation errors (empty if valid).
func (r *Registry) Validate() []error {
	var errs []error

	if r.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", r.Version, CurrentVersion))
	}

	if r.Account != nil {
		if r.Account.BaseURL != "" {
			u, err := url.Parse(r.Account.BaseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Errorf("account.base_url must be an http(s) URL, got %q", r.Account.BaseURL))
			}
		}
		if err := validateRef(r.Account.PasswordRef); err != nil {
			errs = append(errs, fmt.Errorf("account.password_ref: %w", err))
		}
	}

	if r.Preferences != nil {
		switch r.Preferences.OutputFormat {
		case FormatTable, FormatCompact, FormatJSON, "":
		default:
			errs = append(errs, fmt.Errorf("preferences.output_format must be table, compact or json, got %q", r.Preferences.OutputFormat))
		}
		if r.Preferences.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("preferences.timeout_seconds cannot be negative"))
		}
	}

	if r.Bridge != nil {
		if r.Bridge.PollIntervalSeconds < 0 {
			errs = append(errs, fmt.Errorf("bridge.poll_interval_seconds cannot be negative"))
		}
		if (r.Bridge.CertFile == "") != (r.Bridge.KeyFile == "") {
			errs = append(errs, fmt.Errorf("bridge.cert_file and bridge.key_file must be set together"))
		}
		if r.Bridge.MQTT != nil {
			if err := validateRef(r.Bridge.MQTT.PasswordRef); err != nil {
				errs = append(errs, fmt.Errorf("bridge.mqtt.password_ref: %w", err))
			}
			if strings.ContainsAny(r.Bridge.MQTT.TopicPrefix, "+#") {
				errs = append(errs, fmt.Errorf("bridge.mqtt.topic_prefix cannot contain MQTT wildcards"))
			}
		}
	}

	return errs
}

func validateRef(ref string) error {
	switch {
	case ref == "":
		return nil
	case strings.HasPrefix(ref, "env:") && len(ref) > len("env:"):
		return nil
	case strings.HasPrefix(ref, "ssm:") && len(ref) > len("ssm:"):
		return nil
	default:
		return fmt.Errorf("must be env:NAME, ssm:/path or empty, got %q", ref)
	}
}

// GetDevice retrieves device metadata by DSN.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(dsn string) *Device {
	return r.Devices[dsn]
}

// EnsureDevice ensures a device entry exists in the registry.
func (r *Registry) EnsureDevice(dsn string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[dsn]; exists {
		return device
	}

	device := &Device{}
	r.Devices[dsn] = device
	return device
}

// SetDeviceNickname sets a user-friendly nickname for a device.
// An empty nickname removes the entry.
func (r *Registry) SetDeviceNickname(dsn, nickname string) {
	if nickname == "" {
		delete(r.Devices, dsn)
		return
	}
	device := r.EnsureDevice(dsn)
	device.Nickname = nickname
}

// Nicknames returns DSN → nickname for display.
func (r *Registry) Nicknames() map[string]string {
	out := make(map[string]string, len(r.Devices))
	for dsn, d := range r.Devices {
		if d != nil && d.Nickname != "" {
			out[dsn] = d.Nickname
		}
	}
	return out
}
