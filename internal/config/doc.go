// Package config provides user configuration management for the salusconnect tools.
//
// This package manages a YAML configuration file holding the account
// username, a reference to where the password lives, device nicknames, CLI
// preferences and bridge settings. The file follows OS-specific conventions
// for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/salusconnect/config.yaml or $HOME/.config/salusconnect/config.yaml
//   - macOS: $HOME/.config/salusconnect/config.yaml
//   - Windows: %LOCALAPPDATA%\salusconnect\config.yaml
//
// SALUS_CONFIG, when set, names the file directly.
//
// # Security
//
// IMPORTANT: This package NEVER stores passwords. account.password_ref is
// resolved at run time by the credentials package. Thermostat readings are
// never written either; every command asks the cloud afresh.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.ApplyEnv(os.Getenv)
//
//	registry.SetDeviceNickname("10000001", "Lounge")
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
