package salus

import (
	"fmt"
	"strings"
)

// FormatTemperature renders a hundredths value as degrees, e.g. "21.50°C"
func FormatTemperature(x100 float64) string {
	return fmt.Sprintf("%.2f°C", CelsiusFromSetpoint(x100))
}

// HeatingLabel returns "heating" or "idle"
func HeatingLabel(heating bool) string {
	if heating {
		return "heating"
	}
	return "idle"
}

// FormatCompact returns a one-line summary of the device
func (s DeviceSummary) FormatCompact() string {
	return fmt.Sprintf("%s (%s): %s → %s, humidity %.0f, %s",
		s.Name, s.ID,
		FormatTemperature(s.Current),
		FormatTemperature(s.Target),
		s.Humidity,
		HeatingLabel(s.Heating))
}

// FormatDetailed returns a multi-line description of the device state
func (d DeviceState) FormatDetailed() string {
	var b strings.Builder

	name := d.DisplayName
	if name == "" {
		name = "(unnamed)"
	}

	b.WriteString("=== Thermostat ===\n")
	b.WriteString(fmt.Sprintf("Device ID:        %s\n", d.ID))
	b.WriteString(fmt.Sprintf("Name:             %s\n", name))
	b.WriteString(fmt.Sprintf("Temperature:      %s (raw %.0f)\n", FormatTemperature(d.Temperature), d.Temperature))
	b.WriteString(fmt.Sprintf("Heating Setpoint: %s (raw %.0f)\n", FormatTemperature(d.HeatingSetpoint), d.HeatingSetpoint))
	b.WriteString(fmt.Sprintf("Humidity:         %.0f\n", d.Humidity))
	b.WriteString(fmt.Sprintf("Running Mode:     %s\n", HeatingLabel(d.RunningMode)))

	return b.String()
}
