package salus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// DeviceState returns the reduced property state of one device.
// It reuses the session the client holds and signs in only when it has none.
func (c *Client) DeviceState(ctx context.Context, id string) (DeviceState, error) {
	if err := ValidateDeviceID(id); err != nil {
		return DeviceState{}, err
	}

	session, err := c.heldSession(ctx)
	if err != nil {
		return DeviceState{}, err
	}
	return c.FetchDeviceState(ctx, session, id)
}

// FetchDeviceState fetches and reduces the property list of device id using
// an existing session.
func (c *Client) FetchDeviceState(ctx context.Context, session Session, id string) (DeviceState, error) {
	if err := ValidateDeviceID(id); err != nil {
		return DeviceState{}, err
	}
	if !session.Valid() {
		return DeviceState{}, NewValidationError("session has no token")
	}

	var envelopes []PropertyEnvelope
	if err := c.getJSON(ctx, session, propertiesEndpoint(id), &envelopes); err != nil {
		return DeviceState{}, err
	}

	return ReduceProperties(id, envelopes)
}

// ReduceProperties folds a property list into a DeviceState.
//
//   - LocalTemperature_x100 → Temperature
//   - SunnySetpoint_x100 → Humidity
//   - HeatingSetpoint_x100 → HeatingSetpoint, and its product_name → DisplayName
//   - RunningMode → RunningMode (nonzero is true)
//
// Values are taken as-is, still in hundredths. Later entries overwrite
// earlier ones, unknown names are ignored, and null values count as absent.
func ReduceProperties(id string, envelopes []PropertyEnvelope) (DeviceState, error) {
	state := DeviceState{ID: id}

	for _, e := range envelopes {
		p := e.Property

		switch p.DisplayName {
		case PropertyTemperature, PropertyHumidity, PropertyHeatingSetpoint, PropertyRunningMode:
		default:
			continue
		}

		value, present, err := numericValue(p.Value)
		if err != nil {
			return DeviceState{}, NewParseError(
				fmt.Sprintf("property %s of device %s is not numeric", p.DisplayName, id),
				propertiesEndpoint(id), err)
		}
		if !present {
			continue
		}

		switch p.DisplayName {
		case PropertyTemperature:
			state.Temperature = value
		case PropertyHumidity:
			state.Humidity = value
		case PropertyHeatingSetpoint:
			state.HeatingSetpoint = value
			state.DisplayName = p.ProductName
		case PropertyRunningMode:
			state.RunningMode = value != 0
		}
	}

	return state, nil
}

// numericValue decodes a raw property value. Missing and null values report
// present=false.
func numericValue(raw json.RawMessage) (float64, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false, nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func propertiesEndpoint(id string) string {
	return fmt.Sprintf(propertiesPath, url.PathEscape(id))
}
