package salus

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that both username and password are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return NewValidationError("username cannot be empty")
	}
	if c.Password == "" {
		return NewValidationError("password cannot be empty")
	}
	return nil
}

// ValidateDeviceID validates a device serial number (DSN).
// DSNs are opaque but must be non-empty and free of path separators.
func ValidateDeviceID(id string) error {
	if id == "" {
		return NewValidationError("device id cannot be empty")
	}
	if strings.TrimSpace(id) != id {
		return NewValidationError(fmt.Sprintf("device id has surrounding whitespace: %q", id))
	}
	if strings.ContainsAny(id, "/?#") {
		return NewValidationError(fmt.Sprintf("device id contains invalid characters: %q", id))
	}
	return nil
}

// ValidateSetpoint validates a heating setpoint in hundredths of a degree.
// Valid range is MinSetpoint-MaxSetpoint (5.00°C to 35.00°C).
func ValidateSetpoint(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewValidationError("setpoint must be a finite number")
	}
	if value < MinSetpoint || value > MaxSetpoint {
		return NewValidationError(fmt.Sprintf("setpoint must be %d-%d (hundredths of °C), got %g", MinSetpoint, MaxSetpoint, value))
	}
	return nil
}
