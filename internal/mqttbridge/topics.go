package mqttbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/salusconnect/internal/salus"
)

// DefaultTopicPrefix is used when the config leaves the prefix empty
const DefaultTopicPrefix = "salus"

// StateTopic is where a device's summary is published, retained.
func StateTopic(prefix, dsn string) string {
	return fmt.Sprintf("%s/%s/state", normalizePrefix(prefix), dsn)
}

// SetTopic is where a new setpoint for one device is requested.
func SetTopic(prefix, dsn string) string {
	return fmt.Sprintf("%s/%s/setpoint/set", normalizePrefix(prefix), dsn)
}

// SetTopicFilter matches setpoint requests for every device
func SetTopicFilter(prefix string) string {
	return SetTopic(prefix, "+")
}

// ResultTopic receives the outcome of each setpoint request
func ResultTopic(prefix, dsn string) string {
	return fmt.Sprintf("%s/%s/setpoint/result", normalizePrefix(prefix), dsn)
}

// AvailabilityTopic carries "online" while the bridge is connected and
// "offline" as its last will.
func AvailabilityTopic(prefix string) string {
	return normalizePrefix(prefix) + "/bridge/availability"
}

// DeviceFromSetTopic extracts the DSN from a setpoint topic.
func DeviceFromSetTopic(prefix, topic string) (string, bool) {
	head := normalizePrefix(prefix) + "/"
	const tail = "/setpoint/set"
	if !strings.HasPrefix(topic, head) || !strings.HasSuffix(topic, tail) {
		return "", false
	}
	dsn := strings.TrimSuffix(strings.TrimPrefix(topic, head), tail)
	if dsn == "" || strings.Contains(dsn, "/") {
		return "", false
	}
	return dsn, true
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return DefaultTopicPrefix
	}
	return prefix
}

// ParseSetpointPayload turns a setpoint message into hundredths of a degree.
//
// Accepted forms:
//
//	21.5                 degrees Celsius
//	2150                 hundredths, as the device reports them
//	{"celsius": 21.5}
//	{"value": 2150}
//
// Bare numbers below salus.MinSetpoint are read as Celsius. The result is
// range checked with salus.ValidateSetpoint.
func ParseSetpointPayload(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, salus.NewValidationError("empty setpoint payload")
	}

	var value float64
	if strings.HasPrefix(text, "{") {
		var body struct {
			Celsius *float64 `json:"celsius"`
			Value   *float64 `json:"value"`
		}
		if err := json.Unmarshal([]byte(text), &body); err != nil {
			return 0, salus.NewValidationError(fmt.Sprintf("invalid setpoint payload %q", text))
		}
		switch {
		case body.Celsius != nil && body.Value != nil:
			return 0, salus.NewValidationError("set either \"celsius\" or \"value\", not both")
		case body.Celsius != nil:
			value = salus.SetpointFromCelsius(*body.Celsius)
		case body.Value != nil:
			value = *body.Value
		default:
			return 0, salus.NewValidationError("setpoint payload needs \"celsius\" or \"value\"")
		}
	} else {
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, salus.NewValidationError(fmt.Sprintf("invalid setpoint payload %q", text))
		}
		value = n
		if n < salus.MinSetpoint {
			value = salus.SetpointFromCelsius(n)
		}
	}

	if err := salus.ValidateSetpoint(value); err != nil {
		return 0, err
	}
	return value, nil
}
