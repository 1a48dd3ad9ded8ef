package salus

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ListDevices signs in, fetches the account's device inventory and returns a
// summary for every device of the accepted model, in inventory order.
//
// Property fetches run one device at a time. If any of them fails the whole
// call fails and no partial list is returned.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceSummary, error) {
	session, err := c.freshSession(ctx)
	if err != nil {
		return nil, err
	}

	devices, err := c.Inventory(ctx, session)
	if err != nil {
		return nil, err
	}

	summaries := make([]DeviceSummary, 0, len(devices))
	for _, d := range devices {
		if d.OEMModel != c.acceptedModel {
			c.log().Debug("Skipping device",
				zap.String("dsn", d.DSN),
				zap.String("oem_model", d.OEMModel),
			)
			continue
		}

		state, err := c.FetchDeviceState(ctx, session, d.DSN)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.DSN, err)
		}
		summaries = append(summaries, d.Summary(state))
	}

	return summaries, nil
}

// ListDevicesJSON returns ListDevices serialized as a JSON array.
// An account with no matching devices yields "[]".
func (c *Client) ListDevicesJSON(ctx context.Context) (string, error) {
	summaries, err := c.ListDevices(ctx)
	if err != nil {
		return "", err
	}
	return EncodeSummaries(summaries)
}

// EncodeSummaries renders summaries as a JSON array, never "null".
func EncodeSummaries(summaries []DeviceSummary) (string, error) {
	if summaries == nil {
		summaries = []DeviceSummary{}
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return "", NewParseError("failed to encode device list", "", err)
	}
	return string(data), nil
}

// Inventory returns every device on the account, unfiltered.
func (c *Client) Inventory(ctx context.Context, session Session) ([]Device, error) {
	if !session.Valid() {
		return nil, NewValidationError("session has no token")
	}

	var envelopes []DeviceEnvelope
	if err := c.getJSON(ctx, session, devicesPath, &envelopes); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(envelopes))
	for _, e := range envelopes {
		devices = append(devices, e.Device)
	}
	return devices, nil
}
