package salus

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// UpdateTemperature writes a new heating setpoint, in hundredths of a degree
// Celsius, to device id and returns the HTTP status code of the write.
//
// Input is validated before any request is made. The client signs in, then
// posts the datapoint. The response body is not inspected and a non-2xx
// status is returned as-is with a nil error; only transport and sign-in
// failures are errors.
func (c *Client) UpdateTemperature(ctx context.Context, id string, value float64) (int, error) {
	if err := ValidateDeviceID(id); err != nil {
		return 0, err
	}
	if err := ValidateSetpoint(value); err != nil {
		return 0, err
	}

	session, err := c.freshSession(ctx)
	if err != nil {
		return 0, err
	}

	path := datapointsEndpoint(id)
	payload := datapointRequest{Datapoint: datapointValue{Value: value}}

	resp, err := c.do(ctx, c.authorized(session), http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.InvalidateSession()
	}
	if !isSuccess(resp.StatusCode) {
		c.log().Warn("Setpoint write not accepted",
			zap.String("dsn", id),
			zap.Float64("value", value),
			zap.Int("status_code", resp.StatusCode),
		)
	}

	return resp.StatusCode, nil
}

// SetCelsius is UpdateTemperature with the value given in degrees Celsius.
func (c *Client) SetCelsius(ctx context.Context, id string, celsius float64) (int, error) {
	return c.UpdateTemperature(ctx, id, SetpointFromCelsius(celsius))
}

// SetpointFromCelsius converts degrees Celsius to the wire unit (hundredths).
func SetpointFromCelsius(celsius float64) float64 {
	return math.Round(celsius * 100)
}

// CelsiusFromSetpoint converts a wire value (hundredths) to degrees Celsius.
func CelsiusFromSetpoint(value float64) float64 {
	return value / 100
}

// RejectedSetpointError describes a setpoint write for id that the cloud
// answered with a non-2xx status. The endpoint is the datapoints path.
func RejectedSetpointError(status int, id string) *APIError {
	return NewHTTPError(status, datapointsEndpoint(id), "setpoint write was rejected")
}

func datapointsEndpoint(id string) string {
	return fmt.Sprintf(datapointsPath, url.PathEscape(id), SetpointProperty)
}
